package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/todotray/todotray/internal/config"
	"github.com/todotray/todotray/internal/state"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current snapshot from a running daemon",
	Long: `Fetch the current aggregated snapshot from a running todotray daemon and
print it.

Example usage:
  todotray status                  # Human-readable summary
  todotray status --output json    # Raw snapshot as JSON
  todotray status --output yaml    # Raw snapshot as YAML`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			if cfg, err := config.Load(viper.GetString("config")); err == nil {
				port = cfg.Dashboard.Port
			} else {
				port = config.DefaultDashboardPort
			}
		}
		return printStatus(port, output)
	},
}

func init() {
	statusCmd.Flags().StringP("output", "o", "text", "Output format: text, json, or yaml")
	statusCmd.Flags().IntP("port", "p", 0, "Dashboard port of the running daemon")

	rootCmd.AddCommand(statusCmd)
}

func printStatus(port int, output string) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/state", port)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("could not reach daemon at %s (is `todotray run` running?): %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	var st state.AppState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("could not decode snapshot: %w", err)
	}

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(st)
	case "text":
		renderStatus(os.Stdout, st)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func renderStatus(w *os.File, st state.AppState) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("todotray snapshot v%d", st.Version)))
	if st.Loading {
		fmt.Fprintln(w, dimStyle.Render("loading..."))
	}

	printCategory(w, "Overdue", st.Overdue, overdueStyle)
	printCategory(w, "Today", st.Today, lipgloss.NewStyle())
	printCategory(w, "Tomorrow", st.Tomorrow, lipgloss.NewStyle())
	printCategory(w, "In Progress", st.InProgress, lipgloss.NewStyle())

	printSections(w, "Notifications", st.Notifications)
	printSections(w, "Calendar", st.Calendar)

	if len(st.LastError) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Source errors"))
		ids := make([]string, 0, len(st.LastError))
		for id := range st.LastError {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			e := st.LastError[id]
			fmt.Fprintf(w, "  %s\n", errStyle.Render(fmt.Sprintf("%s: %s", id, e.Message)))
		}
	}
}

func printCategory(w *os.File, name string, items []state.WorkItem, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", name, len(items))))
	for _, item := range items {
		line := item.Title
		if item.DisplayTime != "" {
			line += " " + dimStyle.Render("("+item.DisplayTime+")")
		}
		fmt.Fprintf(w, "  %s\n", style.Render(line))
	}
}

func printSections(w *os.File, name string, sections []state.Section) {
	total := 0
	for _, s := range sections {
		total += len(s.Items)
	}
	if total == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", name, total)))
	for _, section := range sections {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render(section.Account))
		for _, item := range section.Items {
			line := item.Title
			if item.DisplayTime != "" {
				line += " " + dimStyle.Render("("+item.DisplayTime+")")
			}
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}
