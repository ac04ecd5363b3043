package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// SnoozeOption is one configured snooze choice. Labels are either unit
// durations ("30m", "2h", "1d") resolved as a fixed offset, or natural
// phrases ("tomorrow", "next monday") resolved against the snooze moment.
type SnoozeOption struct {
	Label    string
	Duration time.Duration // zero for natural phrases
	natural  bool
}

// naturalParser is stateless and shared by all options.
var naturalParser = newNaturalParser()

func newNaturalParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseSnoozeOptions validates the configured labels up front so a bad
// config fails at startup, not on the first snooze.
func ParseSnoozeOptions(labels []string) ([]SnoozeOption, error) {
	opts := make([]SnoozeOption, 0, len(labels))
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			return nil, fmt.Errorf("empty snooze duration")
		}

		if d, ok := parseUnitDuration(label); ok {
			opts = append(opts, SnoozeOption{Label: label, Duration: d})
			continue
		}

		// Fall back to a natural phrase; probe it against a fixed
		// reference so resolution failures surface now.
		ref := time.Date(2026, time.January, 15, 9, 0, 0, 0, time.Local)
		r, err := naturalParser.Parse(label, ref)
		if err != nil || r == nil || !r.Time.After(ref) {
			return nil, fmt.Errorf("invalid snooze duration %q: use forms like 30m, 2h, 1d, or a phrase like \"tomorrow\"", raw)
		}
		opts = append(opts, SnoozeOption{Label: label, natural: true})
	}
	return opts, nil
}

// WakeAt resolves the option to the absolute wake time for a snooze issued
// at now.
func (o SnoozeOption) WakeAt(now time.Time) (time.Time, error) {
	if !o.natural {
		return now.Add(o.Duration), nil
	}
	r, err := naturalParser.Parse(o.Label, now)
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("could not resolve snooze %q", o.Label)
	}
	if !r.Time.After(now) {
		return time.Time{}, fmt.Errorf("snooze %q resolves to the past", o.Label)
	}
	return r.Time, nil
}

// parseUnitDuration handles the compact "<n><unit>" label forms. The day
// unit is why time.ParseDuration alone doesn't cut it.
func parseUnitDuration(label string) (time.Duration, bool) {
	value := strings.ToLower(label)
	if len(value) < 2 {
		return 0, false
	}
	amount, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || amount <= 0 {
		return 0, false
	}
	switch value[len(value)-1] {
	case 'm':
		return time.Duration(amount) * time.Minute, true
	case 'h':
		return time.Duration(amount) * time.Hour, true
	case 'd':
		return time.Duration(amount) * 24 * time.Hour, true
	default:
		return 0, false
	}
}
