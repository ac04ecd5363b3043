package source

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// CalendarClient fetches one iCal feed (Google Calendar private ICS URLs and
// the like) and reports today's events. Calendar items are display-only.
type CalendarClient struct {
	client  *http.Client
	account string
	feedURL string

	// now is swapped out by tests to pin the "today" window.
	now func() time.Time
}

// NewCalendarClient creates a calendar adapter for one named feed.
func NewCalendarClient(account, feedURL string) *CalendarClient {
	return &CalendarClient{
		client:  newHTTPClient(),
		account: account,
		feedURL: feedURL,
		now:     time.Now,
	}
}

// ID implements Source.
func (c *CalendarClient) ID() string { return "calendar:" + c.account }

// Kind implements Source.
func (c *CalendarClient) Kind() Kind { return KindCalendar }

// Account implements Source.
func (c *CalendarClient) Account() string { return c.account }

// Fetch implements Source. It downloads the feed, parses VEVENT blocks, and
// keeps events that overlap the current local day, sorted by start time.
func (c *CalendarClient) Fetch(ctx context.Context) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, netErr(c.ID(), err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, netErr(c.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(c.ID(), resp, bodyPreview(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, netErr(c.ID(), err)
	}

	feed := parseICalFeed(string(body))

	now := c.now()
	dayStart := localMidnight(now)
	dayEnd := dayStart.Add(24 * time.Hour)

	var items []RawItem
	for _, ev := range feed.events {
		if item, ok := eventToItem(ev, dayStart, dayEnd); ok {
			items = append(items, item)
		}
	}
	sortCalendarItems(items)
	return items, nil
}

// localMidnight returns 00:00 local time of t's day.
func localMidnight(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// --- feed parsing ---

type rawEvent struct {
	uid           string
	summary       string
	url           string
	conferenceURL string
	start         *eventTime
	end           *eventTime
}

// eventTime is either a whole date (all-day events) or an instant.
type eventTime struct {
	date    time.Time // midnight local, valid when allDay
	instant time.Time
	allDay  bool
}

type parsedFeed struct {
	calendarName string
	events       []rawEvent
}

func parseICalFeed(content string) parsedFeed {
	var feed parsedFeed
	var current *rawEvent

	for _, line := range unfoldLines(content) {
		name, params, value, ok := parsePropertyLine(line)
		if !ok {
			continue
		}

		switch {
		case name == "BEGIN" && value == "VEVENT":
			current = &rawEvent{}
			continue
		case name == "END" && value == "VEVENT":
			if current != nil {
				feed.events = append(feed.events, *current)
				current = nil
			}
			continue
		}

		if current != nil {
			switch name {
			case "UID":
				current.uid = value
			case "SUMMARY":
				current.summary = unescapeICalText(value)
			case "URL":
				current.url = value
			case "X-GOOGLE-CONFERENCE":
				current.conferenceURL = value
			case "DTSTART":
				current.start = parseEventTime(value, params)
			case "DTEND":
				current.end = parseEventTime(value, params)
			}
			continue
		}

		if name == "X-WR-CALNAME" && feed.calendarName == "" {
			feed.calendarName = unescapeICalText(value)
		}
	}
	return feed
}

// unfoldLines joins RFC 5545 folded continuation lines back onto their
// parent line. Only the single leading space or tab marks the fold; any
// further whitespace is content.
func unfoldLines(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var out []string
	for _, line := range strings.Split(normalized, "\n") {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if len(out) > 0 {
				out[len(out)-1] += line[1:]
			}
			continue
		}
		out = append(out, line)
	}
	return out
}

func parsePropertyLine(line string) (name string, params map[string]string, value string, ok bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", nil, "", false
	}
	value = line[colon+1:]

	parts := strings.Split(line[:colon], ";")
	name = strings.ToUpper(strings.TrimSpace(parts[0]))
	params = make(map[string]string)
	for _, part := range parts[1:] {
		key, val, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		params[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return name, params, value, true
}

func parseEventTime(value string, params map[string]string) *eventTime {
	if strings.EqualFold(params["VALUE"], "DATE") || looksLikeDate(value) {
		d, err := time.ParseInLocation("20060102", value, time.Local)
		if err != nil {
			return nil
		}
		return &eventTime{date: d, allDay: true}
	}

	if stripped, found := strings.CutSuffix(value, "Z"); found {
		if t, err := parseICalDatetime(stripped, time.UTC); err == nil {
			return &eventTime{instant: t}
		}
		return nil
	}

	// Floating times and TZID values are treated as local time.
	if t, err := parseICalDatetime(value, time.Local); err == nil {
		return &eventTime{instant: t}
	}
	return nil
}

func parseICalDatetime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("20060102T150405", value, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation("20060102T1504", value, loc)
}

func looksLikeDate(value string) bool {
	if len(value) != 8 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func unescapeICalText(value string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(value)
}

// --- today filtering ---

func eventToItem(ev rawEvent, dayStart, dayEnd time.Time) (RawItem, bool) {
	if ev.start == nil {
		return RawItem{}, false
	}

	title := ev.summary
	if title == "" {
		title = "(Untitled event)"
	}

	item := RawItem{
		ID:        ev.uid,
		Title:     title,
		ActionURL: eventOpenURL(ev),
	}

	if ev.start.allDay {
		startDay := ev.start.date
		endDay := startDay.Add(24 * time.Hour) // end date is exclusive
		if ev.end != nil {
			if ev.end.allDay {
				endDay = ev.end.date
			} else {
				endDay = localMidnight(ev.end.instant)
			}
		}
		if dayStart.Before(startDay) || !dayStart.Before(endDay) {
			return RawItem{}, false
		}
		item.AllDay = true
		item.Start = &startDay
		item.End = &endDay
	} else {
		start := ev.start.instant.In(time.Local)
		end := start.Add(time.Hour)
		if ev.end != nil {
			if ev.end.allDay {
				end = ev.end.date
			} else {
				end = ev.end.instant.In(time.Local)
			}
		}
		if !start.Before(dayEnd) || !end.After(dayStart) {
			return RawItem{}, false
		}
		item.Start = &start
		item.End = &end
	}

	if item.ID == "" {
		item.ID = item.Title + "-" + item.Start.Format(time.RFC3339)
	}
	return item, true
}

func eventOpenURL(ev rawEvent) string {
	if u := normalizeEventURL(ev.conferenceURL); u != "" {
		return u
	}
	return normalizeEventURL(ev.url)
}

func normalizeEventURL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return ""
}

func sortCalendarItems(items []RawItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return calendarItemBefore(items[i], items[j])
	})
}

func calendarItemBefore(a, b RawItem) bool {
	switch {
	case a.Start != nil && b.Start != nil:
		if !a.Start.Equal(*b.Start) {
			return a.Start.Before(*b.Start)
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	case a.Start != nil:
		return true
	case b.Start != nil:
		return false
	default:
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	}
}
