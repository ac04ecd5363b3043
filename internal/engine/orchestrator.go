package engine

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/todotray/todotray/internal/source"
	"github.com/todotray/todotray/internal/state"
)

// ErrShuttingDown is returned by Refresh once shutdown has begun; no new
// cycle starts after that point.
var ErrShuttingDown = errors.New("engine: shutting down")

// Config holds orchestrator tuning.
type Config struct {
	// RefreshInterval is the periodic full-refresh cadence.
	RefreshInterval time.Duration

	// FetchTimeout bounds each individual source fetch.
	FetchTimeout time.Duration

	// Logger for refresh activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 5 * time.Minute,
		FetchTimeout:    15 * time.Second,
		Logger:          log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Orchestrator owns the periodic refresh loop. Each cycle fans one fetch per
// source out in parallel, waits for every fetch to settle, merges the
// snapshots under the store lock, and turns the overdue diff into
// notifications. Cycles never overlap: a manual refresh requested while one
// is in flight attaches to it and returns when it publishes.
type Orchestrator struct {
	sources  []source.Source
	store    *state.Store
	notifier Notifier
	config   *Config

	mu       sync.Mutex
	inflight chan struct{}
	stopping bool
	wg       sync.WaitGroup
}

// NewOrchestrator wires the refresh loop to its collaborators. notifier may
// be nil when overdue notifications are unwanted (tests, status tooling).
func NewOrchestrator(sources []source.Source, store *state.Store, notifier Notifier, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultConfig().RefreshInterval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Orchestrator{
		sources:  sources,
		store:    store,
		notifier: notifier,
		config:   config,
	}
}

// SetNotifier installs the overdue notifier. The notifier is created after
// the orchestrator when it also serves published state; call this before Run.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// Run performs an immediate refresh and then refreshes on the configured
// interval until ctx is cancelled. On shutdown the in-flight cycle, if any,
// is allowed to finish; its adapter calls run to their own timeouts rather
// than being aborted, so no partial remote mutation is left dangling.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.config.Logger.Printf("Refresh loop started (interval %s, %d sources)", o.config.RefreshInterval, len(o.sources))

	if err := o.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		o.config.Logger.Printf("Initial refresh: %v", err)
	}

	ticker := time.NewTicker(o.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.mu.Lock()
			o.stopping = true
			o.mu.Unlock()

			o.wg.Wait()
			o.config.Logger.Println("Refresh loop stopped")
			return nil

		case <-ticker.C:
			if err := o.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.config.Logger.Printf("Scheduled refresh: %v", err)
			}
		}
	}
}

// Refresh runs one full cycle, or joins the cycle already in flight. It
// returns once that cycle's state has been published, or earlier when ctx is
// cancelled while waiting (the cycle itself still completes).
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	if o.stopping {
		o.mu.Unlock()
		return ErrShuttingDown
	}
	if done := o.inflight; done != nil {
		o.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	o.inflight = done
	o.wg.Add(1)
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inflight = nil
		o.mu.Unlock()
		close(done)
		o.wg.Done()
	}()

	o.runCycle()
	return nil
}

// RequestRefresh triggers a refresh without waiting for it, for callers that
// only want to schedule reconciliation.
func (o *Orchestrator) RequestRefresh() {
	go func() {
		if err := o.Refresh(context.Background()); err != nil && !errors.Is(err, ErrShuttingDown) {
			o.config.Logger.Printf("Requested refresh: %v", err)
		}
	}()
}

// runCycle fetches every source concurrently, waits for all of them to
// settle, and publishes the merged result. Fetch contexts deliberately
// derive from Background rather than the run context: cancellation at
// shutdown must not chop a fetch mid-flight.
func (o *Orchestrator) runCycle() {
	started := time.Now()
	snaps := make([]source.Snapshot, len(o.sources))

	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), o.config.FetchTimeout)
			defer cancel()

			items, err := src.Fetch(ctx)
			snaps[i] = source.Snapshot{
				SourceID:  src.ID(),
				Kind:      src.Kind(),
				Account:   src.Account(),
				Items:     items,
				Err:       err,
				FetchedAt: time.Now(),
			}
			if err != nil {
				o.config.Logger.Printf("Fetch %s failed: %v", src.ID(), err)
			}
		}(i, src)
	}
	wg.Wait()

	now := time.Now()
	prev, cur, _ := o.store.Update(func(prev state.AppState, ov *state.Overrides) (state.AppState, error) {
		return state.Merge(snaps, prev, ov, now), nil
	})

	o.notifyOverdue(prev, cur)
	o.config.Logger.Printf("Cycle complete in %s: version=%d overdue=%d today=%d notifications=%d",
		time.Since(started).Round(time.Millisecond), cur.Version, cur.OverdueCount, cur.TodayCount, cur.NotificationCount)
}

// notifyOverdue emits at most one notification per cycle: the single item's
// title when exactly one item became overdue, a batched count otherwise.
func (o *Orchestrator) notifyOverdue(prev, cur state.AppState) {
	if o.notifier == nil {
		return
	}
	fresh := state.NewlyOverdue(prev, cur)
	if len(fresh) == 0 {
		return
	}
	titles := make([]string, 0, len(fresh))
	for _, item := range fresh {
		titles = append(titles, item.Title)
	}
	o.notifier.Overdue(len(titles), titles)
}
