// Package engine coordinates the refresh loop and user commands around the
// state store: it fans fetches out to the source adapters, merges their
// snapshots, publishes versioned states, applies optimistic command edits,
// and reconciles failed background confirmations with a corrective refresh.
package engine

import "github.com/todotray/todotray/internal/state"

// Observer is the one-directional push interface to the presentation layer.
// The engine never depends on a concrete UI type; whichever layer owns
// rendering implements this. All three calls are fire-and-forget and must
// not block; StateChanged in particular runs inside the store's critical
// section.
type Observer interface {
	// StateChanged delivers every published state, in version order.
	StateChanged(state.AppState)

	// ItemCompleted fires once per successful optimistic completion,
	// carrying the item's title.
	ItemCompleted(title string)

	// Error reports a failed command or background confirmation.
	Error(message string)
}

// Notifier receives the overdue-transition side effects the refresh diff
// produces. The OS notification delivery behind it is out of the engine's
// hands.
type Notifier interface {
	// Overdue fires when items newly enter the Overdue category: one call
	// per cycle, with count == 1 carrying the single item's title and
	// count > 1 batching the whole set.
	Overdue(count int, titles []string)
}

// nopObserver backs a nil observer so call sites stay unconditional.
type nopObserver struct{}

func (nopObserver) StateChanged(state.AppState) {}
func (nopObserver) ItemCompleted(string)        {}
func (nopObserver) Error(string)                {}
