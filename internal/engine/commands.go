package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/todotray/todotray/internal/source"
	"github.com/todotray/todotray/internal/state"
)

// Command errors. Background confirmation failures wrap the adapter's
// source.Error instead.
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrActionNotPermitted = errors.New("action not permitted")
	ErrInvalidDuration    = errors.New("invalid snooze duration")
)

// Autostart is the OS login-item collaborator. Enable and Disable are
// idempotent at the OS level; the engine only flips published state after
// the OS operation succeeds.
type Autostart interface {
	IsEnabled() bool
	Enable() error
	Disable() error
}

// Refresher requests a corrective refresh after a failed confirmation.
type Refresher interface {
	RequestRefresh()
}

// Commands applies user actions optimistically: the local edit publishes
// synchronously before any network call, and a background confirmation
// follows. A failed confirmation withdraws the pending override, reports
// once through the observer, and forces a refresh so the next merge restores
// the item.
type Commands struct {
	store      *state.Store
	observer   Observer
	refresher  Refresher
	autostart  Autostart
	completers map[string]source.Completer // by source ID
	resolvers  map[string]source.Resolver  // by account name
	snoozes    []SnoozeOption

	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// CommandsConfig wires a Commands processor.
type CommandsConfig struct {
	Store      *state.Store
	Observer   Observer
	Refresher  Refresher
	Autostart  Autostart
	Completers map[string]source.Completer
	Resolvers  map[string]source.Resolver
	Snoozes    []SnoozeOption

	// ConfirmTimeout bounds each background confirmation call. Zero
	// means 15s.
	ConfirmTimeout time.Duration
	Logger         *log.Logger
}

// NewCommands creates the command processor.
func NewCommands(cfg CommandsConfig) *Commands {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[commands] ", log.LstdFlags)
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Commands{
		store:      cfg.Store,
		observer:   obs,
		refresher:  cfg.Refresher,
		autostart:  cfg.Autostart,
		completers: cfg.Completers,
		resolvers:  cfg.Resolvers,
		snoozes:    cfg.Snoozes,
		timeout:    cfg.ConfirmTimeout,
		logger:     cfg.Logger,
	}
}

// SetObserver installs the event observer. The observer is created after
// the command processor when it also serves published state; call this
// before the first command runs.
func (c *Commands) SetObserver(obs Observer) {
	if obs == nil {
		obs = nopObserver{}
	}
	c.observer = obs
}

// SnoozeLabels returns the configured option labels in order.
func (c *Commands) SnoozeLabels() []string {
	labels := make([]string, 0, len(c.snoozes))
	for _, opt := range c.snoozes {
		labels = append(labels, opt.Label)
	}
	return labels
}

// Complete marks a task done: optimistic removal and publish first, then the
// source mutation in the background. The pending-resolve override keeps the
// item hidden across refreshes until the source stops returning it.
func (c *Commands) Complete(id string) error {
	var completed state.WorkItem
	_, _, err := c.store.Update(func(prev state.AppState, o *state.Overrides) (state.AppState, error) {
		item, ok := prev.Find(id)
		if !ok {
			return state.AppState{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		if !item.CanAct {
			return state.AppState{}, fmt.Errorf("%w: %q is read-only", ErrActionNotPermitted, item.Title)
		}
		if _, ok := c.completers[item.Source]; !ok {
			return state.AppState{}, fmt.Errorf("%w: source %s has no completion", ErrActionNotPermitted, item.Source)
		}
		completed = item
		o.MarkResolved(item.ID, item.Source, time.Now())
		return state.RemoveItem(prev, id), nil
	})
	if err != nil {
		return err
	}

	c.observer.ItemCompleted(completed.Title)
	c.confirm(completed, func(ctx context.Context) error {
		return c.completers[completed.Source].Complete(ctx, completed.ID)
	})
	return nil
}

// ResolveNotification marks one account's notification thread as read, with
// the same optimistic-then-confirm shape as Complete.
func (c *Commands) ResolveNotification(account, threadID string) error {
	resolver, ok := c.resolvers[account]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrItemNotFound, account)
	}

	var resolved state.WorkItem
	_, _, err := c.store.Update(func(prev state.AppState, o *state.Overrides) (state.AppState, error) {
		item, ok := prev.FindInAccount(account, threadID)
		if !ok {
			return state.AppState{}, fmt.Errorf("%w: thread %s for account %s", ErrItemNotFound, threadID, account)
		}
		resolved = item
		o.MarkResolved(item.ID, item.Source, time.Now())
		return state.RemoveItem(prev, item.ID), nil
	})
	if err != nil {
		return err
	}

	c.confirm(resolved, func(ctx context.Context) error {
		return resolver.Resolve(ctx, resolved.ID)
	})
	return nil
}

// Snooze suppresses an item locally until the option's wake time. There is
// no remote mutation and therefore no background confirmation: the source is
// never told about snoozes.
func (c *Commands) Snooze(id, durationLabel string) error {
	opt, ok := c.snoozeOption(durationLabel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, durationLabel)
	}
	wakeAt, err := opt.WakeAt(time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, err)
	}

	_, _, err = c.store.Update(func(prev state.AppState, o *state.Overrides) (state.AppState, error) {
		item, ok := prev.Find(id)
		if !ok {
			return state.AppState{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		o.Snooze(item.ID, item.Source, wakeAt)
		return state.RemoveItem(prev, id), nil
	})
	return err
}

// ToggleAutostart flips the OS login-item registration and, only on
// success, the published flag. Toggling twice restores the original OS
// registration.
func (c *Commands) ToggleAutostart() (bool, error) {
	if c.autostart == nil {
		return false, fmt.Errorf("%w: autostart is unavailable on this platform", ErrActionNotPermitted)
	}
	var enabled bool
	var osErr error
	if c.autostart.IsEnabled() {
		osErr = c.autostart.Disable()
		enabled = false
	} else {
		osErr = c.autostart.Enable()
		enabled = true
	}
	if osErr != nil {
		c.observer.Error(fmt.Sprintf("Autostart change failed: %v", osErr))
		return c.store.Current().AutostartEnabled, osErr
	}

	_, _, _ = c.store.Update(func(prev state.AppState, o *state.Overrides) (state.AppState, error) {
		next := prev
		next.AutostartEnabled = enabled
		return next, nil
	})
	return enabled, nil
}

// Wait blocks until pending background confirmations finish, for orderly
// shutdown.
func (c *Commands) Wait() {
	c.wg.Wait()
}

func (c *Commands) snoozeOption(label string) (SnoozeOption, bool) {
	for _, opt := range c.snoozes {
		if opt.Label == label {
			return opt, true
		}
	}
	return SnoozeOption{}, false
}

// confirm runs the remote mutation in the background. On failure the
// optimistic removal is undone indirectly: the pending override is cleared
// and a forced refresh rebuilds the state from source truth.
func (c *Commands) confirm(item state.WorkItem, call func(context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := call(ctx)
		if err == nil {
			return
		}

		c.logger.Printf("Confirmation failed for %s (%s): %v", item.ID, item.Source, err)
		c.store.MutateOverrides(func(o *state.Overrides) {
			o.ClearResolved(item.ID)
		})
		c.observer.Error(fmt.Sprintf("Could not update %q: %v", item.Title, err))
		if c.refresher != nil {
			c.refresher.RequestRefresh()
		}
	}()
}
