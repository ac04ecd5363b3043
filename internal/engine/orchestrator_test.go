package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/todotray/todotray/internal/source"
	"github.com/todotray/todotray/internal/state"
)

type fakeSource struct {
	id      string
	kind    source.Kind
	account string

	mu      sync.Mutex
	items   []source.RawItem
	err     error
	fetches int32
	block   chan struct{} // when set, Fetch waits on it
}

func (f *fakeSource) ID() string        { return f.id }
func (f *fakeSource) Kind() source.Kind { return f.kind }
func (f *fakeSource) Account() string   { return f.account }

func (f *fakeSource) Fetch(ctx context.Context) ([]source.RawItem, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeSource) fetchCount() int32 {
	return atomic.LoadInt32(&f.fetches)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeNotifier) Overdue(count int, titles []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, titles)
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testConfig() *Config {
	return &Config{
		RefreshInterval: time.Hour, // ticker must not fire during tests
		FetchTimeout:    5 * time.Second,
		Logger:          quietLogger(),
	}
}

func TestRefresh_PublishesMergedState(t *testing.T) {
	due := time.Now().Add(2 * time.Hour)
	src := &fakeSource{
		id:    "todoist",
		kind:  source.KindTask,
		items: []source.RawItem{{ID: "t1", Title: "task", Due: &due, CanAct: true}},
	}
	store := state.NewStore(state.AppState{Loading: true}, nil)
	orch := NewOrchestrator([]source.Source{src}, store, nil, testConfig())

	if err := orch.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	cur := store.Current()
	if cur.Version != 2 {
		t.Errorf("version = %d, want 2", cur.Version)
	}
	if cur.Loading {
		t.Error("loading still set after first cycle")
	}
	if cur.TodayCount != 1 {
		t.Errorf("today count = %d, want 1", cur.TodayCount)
	}
}

func TestRefresh_SourceFailureIsIsolated(t *testing.T) {
	due := time.Now().Add(2 * time.Hour)
	healthy := &fakeSource{
		id:    "todoist",
		kind:  source.KindTask,
		items: []source.RawItem{{ID: "t1", Title: "task", Due: &due}},
	}
	broken := &fakeSource{
		id:      "github:work",
		kind:    source.KindNotification,
		account: "work",
		err:     &source.Error{Kind: source.ErrNetwork, Source: "github:work", Message: "connection refused"},
	}
	store := state.NewStore(state.AppState{}, nil)
	orch := NewOrchestrator([]source.Source{healthy, broken}, store, nil, testConfig())

	if err := orch.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	cur := store.Current()
	if cur.TodayCount != 1 {
		t.Errorf("healthy source suppressed: today = %d", cur.TodayCount)
	}
	if _, ok := cur.LastError["github:work"]; !ok {
		t.Error("failed source has no LastError entry")
	}
}

func TestRefresh_ConcurrentCallsCoalesce(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{id: "todoist", kind: source.KindTask, block: block}
	store := state.NewStore(state.AppState{}, nil)
	orch := NewOrchestrator([]source.Source{src}, store, nil, testConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = orch.Refresh(context.Background())
	}()

	// Wait for the leader to reach its fetch so the cycle is in flight.
	deadline := time.After(2 * time.Second)
	for src.fetchCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("no fetch started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = orch.Refresh(context.Background())
		}()
	}
	// Give the joiners time to attach to the in-flight cycle.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if got := src.fetchCount(); got != 1 {
		t.Errorf("fetches = %d, want 1 coalesced cycle", got)
	}
	if got := store.Current().Version; got != 2 {
		t.Errorf("version = %d, want 2 (one publish)", got)
	}
}

func TestRefresh_OverdueNotifications(t *testing.T) {
	overdueA := time.Now().Add(-30 * time.Hour)
	overdueB := time.Now().Add(-26 * time.Hour)
	src := &fakeSource{
		id:   "todoist",
		kind: source.KindTask,
		items: []source.RawItem{
			{ID: "a", Title: "first", Due: &overdueA},
			{ID: "b", Title: "second", Due: &overdueB},
		},
	}
	notifier := &fakeNotifier{}
	store := state.NewStore(state.AppState{}, nil)
	orch := NewOrchestrator([]source.Source{src}, store, notifier, testConfig())

	if err := orch.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Two items crossed at once: one batched call, not two.
	if notifier.callCount() != 1 {
		t.Fatalf("notifier calls = %d, want 1", notifier.callCount())
	}
	notifier.mu.Lock()
	if len(notifier.calls[0]) != 2 {
		t.Errorf("batched titles = %v, want 2 entries", notifier.calls[0])
	}
	notifier.mu.Unlock()

	// Unchanged overdue set on the next cycle: no repeat notification.
	if err := orch.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if notifier.callCount() != 1 {
		t.Errorf("notifier calls after repeat cycle = %d, want 1", notifier.callCount())
	}
}

func TestRefresh_AfterShutdown(t *testing.T) {
	src := &fakeSource{id: "todoist", kind: source.KindTask}
	store := state.NewStore(state.AppState{}, nil)
	orch := NewOrchestrator([]source.Source{src}, store, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	// Wait for the initial cycle, then shut down.
	deadline := time.After(2 * time.Second)
	for store.Current().Version < 2 {
		select {
		case <-deadline:
			t.Fatal("initial cycle never published")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if err := orch.Refresh(context.Background()); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("refresh after shutdown = %v, want %v", err, ErrShuttingDown)
	}
}
