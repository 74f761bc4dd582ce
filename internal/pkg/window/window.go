// Package window holds the quota reset-window arithmetic in one place.
// All boundary decisions (midnight, Monday week start, first of month)
// live here so the ledger never duplicates calendar math.
package window

import (
	"time"
)

type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// Elapsed reports whether the window containing lastReset has closed by
// now. Both times are evaluated in loc; passing nil means UTC.
func Elapsed(lastReset, now time.Time, kind Kind, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return Start(now, kind, loc).After(lastReset)
}

// Start returns the opening instant of the window containing t: local
// midnight for daily, Monday 00:00 for weekly, the 1st 00:00 for
// monthly.
func Start(t time.Time, kind Kind, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	switch kind {
	case Weekly:
		// time.Weekday has Sunday==0; shift so Monday opens the week.
		offset := (int(t.Weekday()) + 6) % 7
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}

// NextReset returns when the window containing now rolls over, i.e. the
// instant reported to a user whose quota was denied.
func NextReset(now time.Time, kind Kind, loc *time.Location) time.Time {
	start := Start(now, kind, loc)
	switch kind {
	case Weekly:
		return start.AddDate(0, 0, 7)
	case Monthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
