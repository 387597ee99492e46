package sla

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var nanosPerMinute = decimal.NewFromInt(int64(time.Minute))

// Period is a half-open billing interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod validates the bounds and normalizes them to UTC at microsecond
// precision, the resolution of the stored timestamps.
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, fmt.Errorf("%w: period bounds required", ErrInvalidPeriod)
	}
	start = start.UTC().Truncate(time.Microsecond)
	end = end.UTC().Truncate(time.Microsecond)
	if !end.After(start) {
		return Period{}, fmt.Errorf("%w: end must be after start", ErrInvalidPeriod)
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod returns the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Minutes returns the period length in minutes.
func (p Period) Minutes() decimal.Decimal {
	return MinutesBetween(p.Start, p.End)
}

// Key identifies the exact period bounds. Distinct bounds give distinct keys.
func (p Period) Key() string {
	return strconv.FormatInt(p.Start.UnixMicro(), 10) + "-" + strconv.FormatInt(p.End.UnixMicro(), 10)
}

// Clip returns the part of [from, to) inside the period, in minutes.
func (p Period) Clip(from, to time.Time) decimal.Decimal {
	if from.Before(p.Start) {
		from = p.Start
	}
	if to.After(p.End) {
		to = p.End
	}
	if !to.After(from) {
		return decimal.Zero
	}
	return MinutesBetween(from, to)
}

// MinutesBetween returns to-from in fractional minutes.
func MinutesBetween(from, to time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(to.Sub(from))).Div(nanosPerMinute)
}

// Window is a planned maintenance interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// MergedMinutes clips windows to the period, merges overlaps and returns
// the covered minutes.
func (p Period) MergedMinutes(windows []Window) decimal.Decimal {
	clipped := make([]Window, 0, len(windows))
	for _, w := range windows {
		start, end := w.Start, w.End
		if start.Before(p.Start) {
			start = p.Start
		}
		if end.After(p.End) {
			end = p.End
		}
		if end.After(start) {
			clipped = append(clipped, Window{Start: start, End: end})
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	total := decimal.Zero
	var current *Window
	for idx := range clipped {
		w := clipped[idx]
		if current == nil {
			current = &w
			continue
		}
		if !w.Start.After(current.End) {
			if w.End.After(current.End) {
				current.End = w.End
			}
			continue
		}
		total = total.Add(MinutesBetween(current.Start, current.End))
		current = &w
	}
	if current != nil {
		total = total.Add(MinutesBetween(current.Start, current.End))
	}
	return total
}
