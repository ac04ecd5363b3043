package state

import (
	"fmt"
	"sync"
)

// Store owns the single current AppState and the override tables. Every read
// and write passes through its one mutex; a publish assigns the next version
// and notifies the observer callback while still inside the critical section,
// so observers see versions in strictly increasing order.
//
// The onPublish callback must not block: it runs under the store lock.
type Store struct {
	mu        sync.Mutex
	current   AppState
	overrides *Overrides
	onPublish func(AppState)
}

// NewStore creates a store seeded with the initial state at version 1.
// onPublish may be nil.
func NewStore(initial AppState, onPublish func(AppState)) *Store {
	initial.Version = 1
	return &Store{
		current:   initial,
		overrides: NewOverrides(),
		onPublish: onPublish,
	}
}

// Current returns the latest published state.
func (s *Store) Current() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update runs fn inside the critical section with the previous state and the
// override tables, then publishes fn's result under the next version. If fn
// returns an error nothing is published and the tables are assumed
// unmodified. Both return states are the pre- and post-publish snapshots.
func (s *Store) Update(fn func(prev AppState, o *Overrides) (AppState, error)) (prev, cur AppState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.current
	next, err := fn(prev, s.overrides)
	if err != nil {
		return prev, prev, err
	}

	next.Version = prev.Version + 1
	validate(prev, next)
	s.current = next

	if s.onPublish != nil {
		s.onPublish(next)
	}
	return prev, next, nil
}

// MutateOverrides runs fn against the override tables without publishing a
// new state. Used when a background confirmation fails and the pending
// override has to be withdrawn before the corrective refresh.
func (s *Store) MutateOverrides(fn func(o *Overrides)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.overrides)
}

// validate enforces the publish invariants. A violation is an internal bug,
// never a recoverable condition, so it panics rather than clamping.
func validate(prev, next AppState) {
	if next.Version <= prev.Version {
		panic(fmt.Sprintf("state invariant violation: version %d not above %d", next.Version, prev.Version))
	}
	checks := []struct {
		name  string
		count int
		want  int
	}{
		{"overdue", next.OverdueCount, len(next.Overdue)},
		{"today", next.TodayCount, len(next.Today)},
		{"tomorrow", next.TomorrowCount, len(next.Tomorrow)},
		{"in_progress", next.InProgressCount, len(next.InProgress)},
		{"notification", next.NotificationCount, sectionTotal(next.Notifications)},
		{"calendar", next.CalendarCount, sectionTotal(next.Calendar)},
	}
	for _, c := range checks {
		if c.count != c.want || c.count < 0 {
			panic(fmt.Sprintf("state invariant violation: %s count %d, list holds %d", c.name, c.count, c.want))
		}
	}
}

func sectionTotal(sections []Section) int {
	n := 0
	for _, sec := range sections {
		n += len(sec.Items)
	}
	return n
}
