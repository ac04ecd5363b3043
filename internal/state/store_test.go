package state

import (
	"errors"
	"testing"
	"time"
)

func TestStore_VersionsIncreaseMonotonically(t *testing.T) {
	var published []uint64
	store := NewStore(AppState{Loading: true}, func(st AppState) {
		published = append(published, st.Version)
	})

	if got := store.Current().Version; got != 1 {
		t.Fatalf("initial version = %d, want 1", got)
	}

	for i := 0; i < 3; i++ {
		_, _, err := store.Update(func(prev AppState, o *Overrides) (AppState, error) {
			next := prev
			next.Loading = false
			return next, nil
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	want := []uint64{2, 3, 4}
	if len(published) != len(want) {
		t.Fatalf("published %d versions, want %d", len(published), len(want))
	}
	for i, v := range want {
		if published[i] != v {
			t.Errorf("publish %d: version %d, want %d", i, published[i], v)
		}
	}
	if got := store.Current().Version; got != 4 {
		t.Errorf("current version = %d, want 4", got)
	}
}

func TestStore_UpdateErrorPublishesNothing(t *testing.T) {
	calls := 0
	store := NewStore(AppState{}, func(AppState) { calls++ })

	wantErr := errors.New("no such item")
	prev, cur, err := store.Update(func(prev AppState, o *Overrides) (AppState, error) {
		return AppState{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if prev.Version != cur.Version {
		t.Errorf("failed update changed version: prev %d, cur %d", prev.Version, cur.Version)
	}
	if calls != 0 {
		t.Errorf("failed update published %d times", calls)
	}
	if got := store.Current().Version; got != 1 {
		t.Errorf("current version = %d, want 1", got)
	}
}

func TestStore_CountMismatchPanics(t *testing.T) {
	store := NewStore(AppState{}, nil)

	defer func() {
		if recover() == nil {
			t.Error("publish with stale counts did not panic")
		}
	}()
	_, _, _ = store.Update(func(prev AppState, o *Overrides) (AppState, error) {
		next := prev
		next.Overdue = []WorkItem{{ID: "t1"}}
		// OverdueCount deliberately left at zero
		return next, nil
	})
}

func TestStore_MutateOverridesVisibleToNextUpdate(t *testing.T) {
	store := NewStore(AppState{}, nil)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)

	store.MutateOverrides(func(o *Overrides) {
		o.MarkResolved("t1", "todoist", now)
	})

	var sawResolved bool
	_, _, err := store.Update(func(prev AppState, o *Overrides) (AppState, error) {
		sawResolved = o.Resolved("t1")
		return prev, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !sawResolved {
		t.Error("override mutation not visible to subsequent update")
	}
}

func TestRemoveItem(t *testing.T) {
	st := AppState{
		Today: []WorkItem{{ID: "t1"}, {ID: "t2"}},
		Notifications: []Section{
			{Account: "work", Items: []WorkItem{{ID: "n1"}}},
			{Account: "personal", Items: []WorkItem{{ID: "n2"}, {ID: "n3"}}},
		},
	}
	recount(&st)

	got := RemoveItem(st, "n1")
	if len(got.Notifications) != 1 {
		t.Fatalf("empty section kept: %+v", got.Notifications)
	}
	if got.Notifications[0].Account != "personal" {
		t.Errorf("wrong section dropped: %+v", got.Notifications)
	}
	if got.NotificationCount != 2 {
		t.Errorf("notification count = %d, want 2", got.NotificationCount)
	}

	got = RemoveItem(st, "t2")
	if len(got.Today) != 1 || got.Today[0].ID != "t1" {
		t.Errorf("today = %+v", got.Today)
	}
	if got.TodayCount != 1 {
		t.Errorf("today count = %d, want 1", got.TodayCount)
	}

	// Removing an absent ID leaves the state equivalent.
	got = RemoveItem(st, "nope")
	if got.TodayCount != 2 || got.NotificationCount != 3 {
		t.Errorf("counts changed removing absent id: %+v", got)
	}
}
