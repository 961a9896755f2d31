package charting

import (
	"time"

	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

// DateField is the row field the date-range filter reads.
const DateField = "date"

// DateRange is an inclusive calendar-date range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange reads a [start, end] pair. Anything other than exactly two
// parseable dates yields nil, which Filter treats as "no filter".
func ParseDateRange(values []string) *DateRange {
	if len(values) != 2 {
		return nil
	}
	start, ok := models.ParseDate(values[0])
	if !ok {
		return nil
	}
	end, ok := models.ParseDate(values[1])
	if !ok {
		return nil
	}
	return &DateRange{Start: start, End: end}
}

// Contains reports whether t's calendar date lies in the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Filter keeps the rows whose date falls in r, preserving order. A nil
// range returns rows unchanged. Rows whose date cannot be read are dropped.
func Filter(rows []models.Row, r *DateRange) []models.Row {
	if r == nil {
		return rows
	}
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		t, ok := row.Get(DateField).Time()
		if !ok {
			continue
		}
		if r.Contains(t) {
			out = append(out, row)
		}
	}
	return out
}
