// Package clock provides a monotonic wall-clock abstraction yielding
// immutable DateTime values. Production code depends on the Clock
// interface, never on time.Now directly, so tests can advance time
// deterministically (see scenarios in spec §8 that jump the clock by
// hours without sleeping).
package clock

import "time"

// DateTime is an immutable instant with minute-level semantics. The
// zero value is not meaningful; always obtain one via Clock, FromTime
// or FromISOString.
type DateTime struct {
	t time.Time
}

// Clock yields the current instant. RealClock wraps time.Now; tests use
// a fake that can be advanced explicitly.
type Clock interface {
	Now() DateTime
}

type realClock struct{}

// New returns the production Clock backed by time.Now.
func New() Clock {
	return realClock{}
}

func (realClock) Now() DateTime {
	return FromTime(time.Now())
}

// FromTime wraps a standard library time.Time as a DateTime.
func FromTime(t time.Time) DateTime {
	return DateTime{t: t}
}

// ToTime exposes the underlying time.Time for interop with packages
// that require it (e.g. os/exec, filesystem mtimes).
func (d DateTime) ToTime() time.Time {
	return d.t
}

// AddDuration returns a new DateTime offset forward by d.
func (d DateTime) AddDuration(dur Duration) DateTime {
	return DateTime{t: d.t.Add(dur.ToDuration())}
}

// SubtractDuration returns a new DateTime offset backward by d.
func (d DateTime) SubtractDuration(dur Duration) DateTime {
	return DateTime{t: d.t.Add(-dur.ToDuration())}
}

// Diff returns d - other as a Duration. Negative if d is before other.
func (d DateTime) Diff(other DateTime) Duration {
	return FromMilliseconds(d.t.Sub(other.t).Milliseconds())
}

// Before reports whether d occurs strictly before other.
func (d DateTime) Before(other DateTime) bool {
	return d.t.Before(other.t)
}

// After reports whether d occurs strictly after other.
func (d DateTime) After(other DateTime) bool {
	return d.t.After(other.t)
}

// Equal reports whether d and other denote the same instant.
func (d DateTime) Equal(other DateTime) bool {
	return d.t.Equal(other.t)
}

// Max returns the later of two DateTimes.
func Max(a, b DateTime) DateTime {
	if a.After(b) {
		return a
	}
	return b
}

// ToISOString renders d as an RFC3339 UTC string, the on-disk format
// used for every persisted timestamp (spec §6).
func (d DateTime) ToISOString() string {
	return d.t.UTC().Format(time.RFC3339)
}

// FromISOString parses the persisted timestamp format.
func FromISOString(s string) (DateTime, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return DateTime{}, err
	}
	return DateTime{t: t}, nil
}

// Weekday returns the lowercase English weekday name, for display only
// (the cron parser never accepts weekday names, per spec §4.1).
func (d DateTime) Weekday() string {
	switch d.t.Weekday() {
	case time.Sunday:
		return "sunday"
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	default:
		return "saturday"
	}
}

func (d DateTime) Year() int   { return d.t.Year() }
func (d DateTime) Month() int  { return int(d.t.Month()) }
func (d DateTime) Day() int    { return d.t.Day() }
func (d DateTime) Hour() int   { return d.t.Hour() }
func (d DateTime) Minute() int { return d.t.Minute() }

// DayOfWeek returns 0 (Sunday) .. 6 (Saturday), matching the cron field
// domain in spec §3.
func (d DateTime) DayOfWeek() int {
	return int(d.t.Weekday())
}

// GetTime returns the epoch in milliseconds.
func (d DateTime) GetTime() int64 {
	return d.t.UnixMilli()
}

// WithMinuteResolution floors seconds and nanoseconds, the resolution
// every cron computation in this module operates at.
func (d DateTime) WithMinuteResolution() DateTime {
	return DateTime{t: time.Date(d.t.Year(), d.t.Month(), d.t.Day(), d.t.Hour(), d.t.Minute(), 0, 0, d.t.Location())}
}
