// Package timeframe turns a "last N days" request into a bounded UTC window and
// provides the day bucketing shared by the aggregation queries.
package timeframe

import (
	"fmt"
	"time"
)

// Lookback bounds for dashboard style queries.
const (
	MinLookbackDays = 1
	MaxLookbackDays = 90
)

// DayFormat is the layout of a day bucket key, matching the SQLite strftime output.
const DayFormat = "2006-01-02"

// DateStat is one bucket of a time series.
type DateStat struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TimeProvider abstracts the clock so window math can be pinned in tests.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock in UTC.
type DefaultTimeProvider struct{}

// Now returns the current UTC time.
func (p DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct {
	At time.Time
}

// Now returns the pinned instant in UTC.
func (p FixedTimeProvider) Now() time.Time {
	return p.At.UTC()
}

// Lookback is a trailing window ending at To.
type Lookback struct {
	Days int
	From time.Time
	To   time.Time
}

// ClampDays forces days into [MinLookbackDays, MaxLookbackDays].
func ClampDays(days int) int {
	return ClampInt(days, MinLookbackDays, MaxLookbackDays)
}

// ClampInt forces v into [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewLookback builds the window [now - days*24h, now] after clamping days.
func NewLookback(now time.Time, days int) Lookback {
	days = ClampDays(days)
	to := now.UTC()
	return Lookback{
		Days: days,
		From: to.Add(-time.Duration(days) * 24 * time.Hour),
		To:   to,
	}
}

// SQLiteDayExpression returns the group-by expression bucketing column into UTC days.
func SQLiteDayExpression(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}
