// Package source defines the narrow interface between the aggregation engine
// and the upstream services it pulls work items from, plus the concrete
// adapters for Todoist, Linear, GitHub notifications, and iCal feeds.
//
// Adapters are stateless per call: every Fetch and mutation carries its own
// context, and adapters hold no mutable state beyond credentials and an HTTP
// client. All coordination lives in the engine.
package source

import (
	"context"
	"time"
)

// Kind identifies which flavor of upstream a source is. It determines how the
// merge engine categorizes the source's items.
type Kind string

const (
	// KindTask sources contribute dated to-do items (Todoist).
	KindTask Kind = "task"
	// KindIssue sources contribute in-progress tracker issues (Linear).
	KindIssue Kind = "issue"
	// KindNotification sources contribute notification threads (GitHub).
	KindNotification Kind = "notification"
	// KindCalendar sources contribute today's calendar events (iCal feeds).
	KindCalendar Kind = "calendar"
)

// RawItem is one item as reported by an upstream source, normalized just far
// enough for the merge engine to categorize it. IDs are stable across fetch
// cycles within a source.
type RawItem struct {
	ID        string
	Title     string
	Detail    string
	Due       *time.Time
	Updated   *time.Time
	Start     *time.Time
	End       *time.Time
	AllDay    bool
	CanAct    bool
	ActionURL string
}

// Snapshot is the result of one fetch cycle from one source: either a list of
// raw items or an error, tagged with the source identity and fetch time.
type Snapshot struct {
	SourceID  string
	Kind      Kind
	Account   string
	Items     []RawItem
	Err       error
	FetchedAt time.Time
}

// OK reports whether the snapshot carries usable data.
func (s Snapshot) OK() bool { return s.Err == nil }

// Source is implemented by every upstream adapter.
type Source interface {
	// ID uniquely identifies the source instance (e.g. "todoist",
	// "github:work"). Item IDs are only unique within their source.
	ID() string

	// Kind reports how the merge engine should categorize this source's items.
	Kind() Kind

	// Account is the grouping label for notification and calendar sections.
	// Task and issue sources return "".
	Account() string

	// Fetch retrieves the source's current items. The caller owns the
	// timeout on ctx; a nil error with an empty slice is a valid result.
	Fetch(ctx context.Context) ([]RawItem, error)
}

// Completer is implemented by sources whose items can be completed remotely.
type Completer interface {
	Complete(ctx context.Context, itemID string) error
}

// Resolver is implemented by notification sources whose threads can be marked
// as read remotely.
type Resolver interface {
	Resolve(ctx context.Context, threadID string) error
}
