// internal/nlq/tagger/temporal.go
package tagger

import (
	"time"

	"querydesk/internal/models"
)

// Temporal phrases resolve against the request clock using calendar
// truncation, not fixed-size offsets: "last month" means the calendar month
// before the current one, whatever its length.

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek truncates to Monday 00:00.
func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
}

// resolveSingleDay handles "today" and "yesterday" as half-open day ranges.
func resolveSingleDay(word string, now time.Time) (*models.TimeRange, string, bool) {
	day := startOfDay(now)
	switch word {
	case "today":
		return &models.TimeRange{Start: day, End: day.AddDate(0, 0, 1)}, day.Format("2006-01-02"), true
	case "yesterday":
		y := day.AddDate(0, 0, -1)
		return &models.TimeRange{Start: y, End: day}, y.Format("2006-01-02"), true
	}
	return nil, "", false
}

// resolveRelative handles "this <unit>" and "last <unit>". "this" yields a
// closed calendar-period range; "last" yields a one-sided lower bound at the
// start of the previous period.
func resolveRelative(qualifier, unit string, now time.Time) (*models.TimeRange, string, bool) {
	var start, next time.Time
	switch unit {
	case "week":
		start = startOfWeek(now)
		next = start.AddDate(0, 0, 7)
	case "month":
		start = startOfMonth(now)
		next = start.AddDate(0, 1, 0)
	case "year":
		start = startOfYear(now)
		next = start.AddDate(1, 0, 0)
	default:
		return nil, "", false
	}

	switch qualifier {
	case "this":
		return &models.TimeRange{Start: start, End: next},
			"this-" + unit, true
	case "last":
		var prev time.Time
		switch unit {
		case "week":
			prev = start.AddDate(0, 0, -7)
		case "month":
			prev = start.AddDate(0, -1, 0)
		case "year":
			prev = start.AddDate(-1, 0, 0)
		}
		return &models.TimeRange{Start: prev, OpenEnded: true},
			"last-" + unit, true
	}
	return nil, "", false
}
