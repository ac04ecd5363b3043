package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "todotray",
	Short: "Aggregate tasks, issues, notifications, and calendar events into one tray state",
	Long: `todotray polls Todoist tasks, Linear issues, GitHub notifications, and iCal
calendar feeds, merges them into a single versioned snapshot, and serves the
result to tray UI clients over a local HTTP/WebSocket bridge.

Commands:
  run      Start the aggregation daemon and dashboard server
  status   Print the current snapshot from a running daemon
  init     Create a starter config file

Configuration lives in a TOML file (default: $XDG_CONFIG_HOME/todotray/config.toml).
Every setting can also be overridden with TODOTRAY_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: user config dir)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	viper.SetEnvPrefix("TODOTRAY")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
