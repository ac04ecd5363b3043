package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/todotray/todotray/internal/source"
	"github.com/todotray/todotray/internal/state"
)

type fakeObserver struct {
	mu        sync.Mutex
	completed []string
	errors    []string
}

func (f *fakeObserver) StateChanged(state.AppState) {}

func (f *fakeObserver) ItemCompleted(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, title)
}

func (f *fakeObserver) Error(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}

func (f *fakeObserver) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, itemID)
	return f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, threadID)
	return f.err
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) RequestRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAutostart struct {
	enabled bool
	err     error
}

func (f *fakeAutostart) IsEnabled() bool { return f.enabled }

func (f *fakeAutostart) Enable() error {
	if f.err != nil {
		return f.err
	}
	f.enabled = true
	return nil
}

func (f *fakeAutostart) Disable() error {
	if f.err != nil {
		return f.err
	}
	f.enabled = false
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seededStore(t *testing.T) *state.Store {
	t.Helper()
	initial := state.AppState{
		Today: []state.WorkItem{
			{ID: "t1", Source: "todoist", Title: "write report", CanAct: true},
			{ID: "t2", Source: "todoist", Title: "read only", CanAct: false},
		},
		Notifications: []state.Section{
			{Account: "work", Items: []state.WorkItem{
				{ID: "n1", Source: "github:work", Account: "work", Title: "review PR", CanAct: true},
			}},
		},
	}
	initial.TodayCount = 2
	initial.NotificationCount = 1
	return state.NewStore(initial, nil)
}

func newTestCommands(t *testing.T, store *state.Store, obs *fakeObserver, completer *fakeCompleter, resolver *fakeResolver, refresher *fakeRefresher, auto *fakeAutostart) *Commands {
	t.Helper()
	snoozes, err := ParseSnoozeOptions([]string{"30m", "1d"})
	if err != nil {
		t.Fatal(err)
	}
	return NewCommands(CommandsConfig{
		Store:      store,
		Observer:   obs,
		Refresher:  refresher,
		Autostart:  auto,
		Completers: map[string]source.Completer{"todoist": completer},
		Resolvers:  map[string]source.Resolver{"work": resolver},
		Snoozes:    snoozes,
		Logger:     quietLogger(),
	})
}

func TestCommands_CompleteOptimistic(t *testing.T) {
	store := seededStore(t)
	obs := &fakeObserver{}
	completer := &fakeCompleter{}
	cmds := newTestCommands(t, store, obs, completer, &fakeResolver{}, &fakeRefresher{}, &fakeAutostart{})

	before := store.Current().Version
	if err := cmds.Complete("t1"); err != nil {
		t.Fatal(err)
	}

	cur := store.Current()
	if cur.Version != before+1 {
		t.Errorf("version = %d, want %d", cur.Version, before+1)
	}
	if _, found := cur.Find("t1"); found {
		t.Error("completed item still displayed")
	}
	if len(obs.completed) != 1 || obs.completed[0] != "write report" {
		t.Errorf("completed events = %v", obs.completed)
	}

	cmds.Wait()
	if completer.callCount() != 1 {
		t.Errorf("completer called %d times, want 1", completer.callCount())
	}
}

func TestCommands_CompleteRemoteFailureRollsBack(t *testing.T) {
	store := seededStore(t)
	obs := &fakeObserver{}
	completer := &fakeCompleter{err: errors.New("503 from upstream")}
	refresher := &fakeRefresher{}
	cmds := newTestCommands(t, store, obs, completer, &fakeResolver{}, refresher, &fakeAutostart{})

	if err := cmds.Complete("t1"); err != nil {
		t.Fatal(err)
	}
	// The optimistic removal publishes regardless of the remote outcome.
	if _, found := store.Current().Find("t1"); found {
		t.Fatal("item still displayed after optimistic removal")
	}

	cmds.Wait()

	// The pending override is withdrawn so the corrective refresh can
	// restore the item from source truth.
	var stillResolved bool
	store.MutateOverrides(func(o *state.Overrides) {
		stillResolved = o.Resolved("t1")
	})
	if stillResolved {
		t.Error("pending resolution survived a failed confirmation")
	}
	if obs.errorCount() != 1 {
		t.Errorf("error events = %d, want 1", obs.errorCount())
	}
	if refresher.callCount() != 1 {
		t.Errorf("corrective refreshes = %d, want 1", refresher.callCount())
	}
}

func TestCommands_CompleteValidation(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want error
	}{
		{name: "unknown item", id: "nope", want: ErrItemNotFound},
		{name: "read-only item", id: "t2", want: ErrActionNotPermitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore(t)
			completer := &fakeCompleter{}
			cmds := newTestCommands(t, store, &fakeObserver{}, completer, &fakeResolver{}, &fakeRefresher{}, &fakeAutostart{})

			before := store.Current().Version
			err := cmds.Complete(tt.id)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if store.Current().Version != before {
				t.Error("rejected command published a new version")
			}
			cmds.Wait()
			if completer.callCount() != 0 {
				t.Error("rejected command reached the source")
			}
		})
	}
}

func TestCommands_SnoozeIsLocalOnly(t *testing.T) {
	store := seededStore(t)
	completer := &fakeCompleter{}
	cmds := newTestCommands(t, store, &fakeObserver{}, completer, &fakeResolver{}, &fakeRefresher{}, &fakeAutostart{})

	if err := cmds.Snooze("t1", "30m"); err != nil {
		t.Fatal(err)
	}
	if _, found := store.Current().Find("t1"); found {
		t.Error("snoozed item still displayed")
	}

	var count int
	store.MutateOverrides(func(o *state.Overrides) {
		count = o.SnoozeCount()
	})
	if count != 1 {
		t.Errorf("snooze overrides = %d, want 1", count)
	}

	cmds.Wait()
	if completer.callCount() != 0 {
		t.Error("snooze reached the source")
	}
}

func TestCommands_SnoozeUnknownLabel(t *testing.T) {
	store := seededStore(t)
	cmds := newTestCommands(t, store, &fakeObserver{}, &fakeCompleter{}, &fakeResolver{}, &fakeRefresher{}, &fakeAutostart{})

	before := store.Current().Version
	err := cmds.Snooze("t1", "5y")
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidDuration)
	}
	if store.Current().Version != before {
		t.Error("invalid snooze published a new version")
	}
	if _, found := store.Current().Find("t1"); !found {
		t.Error("invalid snooze removed the item")
	}
}

func TestCommands_ResolveNotification(t *testing.T) {
	store := seededStore(t)
	resolver := &fakeResolver{}
	cmds := newTestCommands(t, store, &fakeObserver{}, &fakeCompleter{}, resolver, &fakeRefresher{}, &fakeAutostart{})

	if err := cmds.ResolveNotification("work", "n1"); err != nil {
		t.Fatal(err)
	}
	if _, found := store.Current().Find("n1"); found {
		t.Error("resolved notification still displayed")
	}
	cmds.Wait()
	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	if len(resolver.calls) != 1 || resolver.calls[0] != "n1" {
		t.Errorf("resolver calls = %v", resolver.calls)
	}
}

func TestCommands_ResolveUnknownAccount(t *testing.T) {
	store := seededStore(t)
	cmds := newTestCommands(t, store, &fakeObserver{}, &fakeCompleter{}, &fakeResolver{}, &fakeRefresher{}, &fakeAutostart{})

	if err := cmds.ResolveNotification("personal", "n1"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrItemNotFound)
	}
}

func TestCommands_ToggleAutostart(t *testing.T) {
	store := seededStore(t)
	auto := &fakeAutostart{}
	cmds := newTestCommands(t, store, &fakeObserver{}, &fakeCompleter{}, &fakeResolver{}, &fakeRefresher{}, auto)

	enabled, err := cmds.ToggleAutostart()
	if err != nil || !enabled {
		t.Fatalf("first toggle = (%v, %v), want (true, nil)", enabled, err)
	}
	if !store.Current().AutostartEnabled {
		t.Error("published state not flipped on")
	}

	enabled, err = cmds.ToggleAutostart()
	if err != nil || enabled {
		t.Fatalf("second toggle = (%v, %v), want (false, nil)", enabled, err)
	}
	if store.Current().AutostartEnabled {
		t.Error("published state not flipped off")
	}
}

func TestCommands_ToggleAutostartFailureKeepsState(t *testing.T) {
	store := seededStore(t)
	obs := &fakeObserver{}
	auto := &fakeAutostart{err: errors.New("permission denied")}
	cmds := newTestCommands(t, store, obs, &fakeCompleter{}, &fakeResolver{}, &fakeRefresher{}, auto)

	before := store.Current()
	_, err := cmds.ToggleAutostart()
	if err == nil {
		t.Fatal("toggle succeeded despite OS failure")
	}
	cur := store.Current()
	if cur.Version != before.Version || cur.AutostartEnabled != before.AutostartEnabled {
		t.Error("failed toggle changed published state")
	}
	if obs.errorCount() != 1 {
		t.Errorf("error events = %d, want 1", obs.errorCount())
	}
}
