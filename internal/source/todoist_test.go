package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTodoistFetch(t *testing.T) {
	var gotPath, gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": "100", "content": "write report", "due": {"date": "2026-03-10T17:00:00"}},
			{"id": "101", "content": "buy milk", "due": {"date": "2026-03-10"}},
			{"id": "102", "content": "someday", "due": null}
		]}`))
	}))
	defer server.Close()

	c := NewTodoistClient("secret")
	c.baseURL = server.URL

	items, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/tasks/filter" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotQuery != "today | overdue | tomorrow" {
		t.Errorf("filter query = %q", gotQuery)
	}

	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].ID != "100" || items[0].Title != "write report" {
		t.Errorf("item[0] = %+v", items[0])
	}
	if !items[0].CanAct {
		t.Error("task not actionable")
	}
	if items[0].ActionURL != "https://app.todoist.com/app/task/100" {
		t.Errorf("action url = %q", items[0].ActionURL)
	}

	want := time.Date(2026, 3, 10, 17, 0, 0, 0, time.Local)
	if items[0].Due == nil || !items[0].Due.Equal(want) {
		t.Errorf("due = %v, want %v", items[0].Due, want)
	}
	// Date-only dues land at the end of the local day.
	wantEOD := time.Date(2026, 3, 10, 23, 59, 59, 0, time.Local)
	if items[1].Due == nil || !items[1].Due.Equal(wantEOD) {
		t.Errorf("date-only due = %v, want %v", items[1].Due, wantEOD)
	}
	if items[2].Due != nil {
		t.Errorf("undated task has due %v", items[2].Due)
	}
}

func TestTodoistFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := NewTodoistClient("secret")
			c.baseURL = server.URL

			_, err := c.Fetch(context.Background())
			if !IsKind(err, tt.want) {
				t.Errorf("err = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestTodoistComplete(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewTodoistClient("secret")
	c.baseURL = server.URL

	if err := c.Complete(context.Background(), "100"); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPost || gotPath != "/tasks/100/close" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *time.Time
	}{
		{
			name:  "utc instant",
			value: "2026-03-10T17:00:00Z",
			want:  timePtr(time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)),
		},
		{
			name:  "naive datetime is local",
			value: "2026-03-10T17:00:00",
			want:  timePtr(time.Date(2026, 3, 10, 17, 0, 0, 0, time.Local)),
		},
		{
			name:  "date only is end of local day",
			value: "2026-03-10",
			want:  timePtr(time.Date(2026, 3, 10, 23, 59, 59, 0, time.Local)),
		},
		{name: "garbage", value: "soon", want: nil},
		{name: "empty", value: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDueDate(tt.value)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("parseDueDate(%q) = %v, want %v", tt.value, got, tt.want)
			case !got.Equal(*tt.want):
				t.Errorf("parseDueDate(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
