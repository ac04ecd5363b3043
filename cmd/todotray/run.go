package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/todotray/todotray/internal/autostart"
	"github.com/todotray/todotray/internal/config"
	"github.com/todotray/todotray/internal/dashboard"
	"github.com/todotray/todotray/internal/engine"
	"github.com/todotray/todotray/internal/logging"
	"github.com/todotray/todotray/internal/source"
	"github.com/todotray/todotray/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the aggregation daemon and dashboard server",
	Long: `Start the background daemon: poll all configured sources on the refresh
interval, publish merged snapshots, and serve tray clients on the dashboard
port.

WebSocket messages include:
- state_changed: A new snapshot version was published
- item_completed: A completion was applied locally
- overdue: Items newly crossed the overdue boundary
- error: A background confirmation or source fetch failed

Example usage:
  todotray run                   # Default config location and port
  todotray run --port 9000       # Custom dashboard port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		interval, _ := cmd.Flags().GetDuration("refresh-interval")
		return runDaemon(port, interval)
	},
}

func init() {
	runCmd.Flags().IntP("port", "p", 0, "Dashboard port (overrides config)")
	runCmd.Flags().Duration("refresh-interval", 0, "Refresh interval (overrides config)")

	rootCmd.AddCommand(runCmd)
}

func runDaemon(flagPort int, flagInterval time.Duration) error {
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if configPath == "" {
		configPath, err = config.Path()
		if err != nil {
			return err
		}
	}

	logWriter, logCloser := logging.Writer(cfg.LogFile)
	defer logCloser.Close()
	mainLog := logging.New(logWriter, "[todotray] ")

	port := cfg.Dashboard.Port
	if flagPort > 0 {
		port = flagPort
	}
	interval := cfg.Interval()
	if flagInterval > 0 {
		interval = flagInterval
	}

	sources, completers, resolvers := buildSources(cfg)
	mainLog.Printf("starting with %d sources", len(sources))

	snoozes, err := engine.ParseSnoozeOptions(cfg.SnoozeDurations)
	if err != nil {
		return fmt.Errorf("invalid snooze_durations: %w", err)
	}

	var manager *autostart.Manager
	autostartEnabled := false
	if manager, err = autostart.New(); err != nil {
		mainLog.Printf("autostart unavailable: %v", err)
		manager = nil
	} else {
		if cfg.Autostart && !manager.IsEnabled() {
			if err := manager.Enable(); err != nil {
				mainLog.Printf("could not enable autostart: %v", err)
			}
		}
		autostartEnabled = manager.IsEnabled()
	}

	initial := state.AppState{
		Loading:          true,
		AutostartEnabled: autostartEnabled,
		SnoozeDurations:  cfg.SnoozeDurations,
	}

	// The store publishes to the dashboard, which does not exist until the
	// store does. Break the cycle with a late-bound pointer; nothing
	// publishes before Start below.
	var server *dashboard.Server
	store := state.NewStore(initial, func(st state.AppState) {
		if server != nil {
			server.StateChanged(st)
		}
	})

	orch := engine.NewOrchestrator(sources, store, nil, &engine.Config{
		RefreshInterval: interval,
		Logger:          logging.New(logWriter, "[engine] "),
	})

	commands := engine.NewCommands(engine.CommandsConfig{
		Store:      store,
		Refresher:  orch,
		Autostart:  autostartManager(manager),
		Completers: completers,
		Resolvers:  resolvers,
		Snoozes:    snoozes,
		Logger:     logging.New(logWriter, "[commands] "),
	})

	server = dashboard.NewServer(&dashboard.Config{
		Port:      port,
		Store:     store,
		Commands:  commands,
		Refresher: orch,
		Logger:    logging.New(logWriter, "[dashboard] "),
	})
	orch.SetNotifier(server)
	commands.SetObserver(server)

	if err := server.Start(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		watchLog := logging.New(logWriter, "[config] ")
		err := config.Watch(ctx, configPath, watchLog, func() {
			server.Error("configuration changed on disk; restart todotray to apply")
		})
		if err != nil && ctx.Err() == nil {
			watchLog.Printf("config watch stopped: %v", err)
		}
	}()

	err = orch.Run(ctx)

	commands.Wait()
	if stopErr := server.Stop(); stopErr != nil {
		mainLog.Printf("dashboard stop: %v", stopErr)
	}
	if err != nil && ctx.Err() != nil {
		err = nil
	}
	return err
}

// buildSources constructs one adapter per configured credential. Sources
// with no credentials are simply absent; their categories stay empty.
func buildSources(cfg *config.Config) ([]source.Source, map[string]source.Completer, map[string]source.Resolver) {
	var sources []source.Source
	completers := make(map[string]source.Completer)
	resolvers := make(map[string]source.Resolver)

	todoist := source.NewTodoistClient(cfg.TodoistToken())
	sources = append(sources, todoist)
	completers[todoist.ID()] = todoist

	if cfg.LinearAPIToken != "" {
		sources = append(sources, source.NewLinearClient(cfg.LinearAPIToken))
	}
	for _, account := range cfg.GithubAccounts {
		gh := source.NewGithubClient(account.Name, account.Token)
		sources = append(sources, gh)
		resolvers[account.Name] = gh
	}
	for _, feed := range cfg.CalendarFeeds {
		sources = append(sources, source.NewCalendarClient(feed.Name, feed.FeedURL()))
	}
	return sources, completers, resolvers
}

// autostartManager adapts the nil case: a nil *Manager inside a non-nil
// interface would pass the engine's nil check and then panic.
func autostartManager(m *autostart.Manager) engine.Autostart {
	if m == nil {
		return nil
	}
	return m
}
