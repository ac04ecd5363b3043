package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/todotray/todotray/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config file",
	Long: `Interactively create a config file.

Only the Todoist API token is required; every other source can be added to
the file later. The file is written to the default config location unless
--config points elsewhere.

Example usage:
  todotray init
  todotray init --config ./config.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("config")
		if path == "" {
			var err error
			path, err = config.Path()
			if err != nil {
				return err
			}
		}
		return runInit(path)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	var (
		todoistToken string
		linearToken  string
		autostartOn  bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Todoist API token").
				Description("From https://app.todoist.com/app/settings/integrations/developer").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a Todoist token is required")
					}
					return nil
				}).
				Value(&todoistToken),
			huh.NewInput().
				Title("Linear API token (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&linearToken),
			huh.NewConfirm().
				Title("Start todotray at login?").
				Value(&autostartOn),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(renderConfig(todoistToken, linearToken, autostartOn)), 0o600); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Add GitHub accounts and calendar feeds there, then start with `todotray run`.")
	return nil
}

func renderConfig(todoistToken, linearToken string, autostartOn bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "todoist_api_token = %q\n", strings.TrimSpace(todoistToken))
	if strings.TrimSpace(linearToken) != "" {
		fmt.Fprintf(&b, "linear_api_token = %q\n", strings.TrimSpace(linearToken))
	}
	fmt.Fprintf(&b, "autostart = %v\n", autostartOn)
	b.WriteString(`snooze_durations = ["30m", "1d"]
refresh_interval = "300s"

# [[github_accounts]]
# name = "work"
# token = "ghp_..."

# [[calendar_feeds]]
# name = "personal"
# ical_url = "https://calendar.google.com/calendar/ical/.../basic.ics"

[dashboard]
port = 8080
`)
	return b.String()
}
