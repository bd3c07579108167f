package cronexpr

import (
	"strings"

	"github.com/ottojung/volodyslav-scheduler/internal/clock"
)

// Expression is the parsed form of a five-field cron expression (spec
// §3 CronExpression). The original text is retained verbatim for
// logging and for registration-identity comparisons (spec §4.2).
type Expression struct {
	original string

	minute     field
	hour       field
	dayOfMonth field
	month      field
	dayOfWeek  field
}

// String returns the original textual expression.
func (e Expression) String() string {
	return e.original
}

// Parse parses a five-field cron expression. Day-of-week names are not
// accepted — only integers 0..6, Sunday = 0 — per the explicit design
// decision in spec §4.1.
func Parse(text string) (Expression, error) {
	fields := strings.Fields(text)
	if len(fields) != 5 {
		return Expression{}, invalid("expression", "expected exactly 5 fields")
	}

	minute, err := parseField("minute", fields[0], 0, 59)
	if err != nil {
		return Expression{}, err
	}
	hour, err := parseField("hour", fields[1], 0, 23)
	if err != nil {
		return Expression{}, err
	}
	dayOfMonth, err := parseField("dayOfMonth", fields[2], 1, 31)
	if err != nil {
		return Expression{}, err
	}
	month, err := parseField("month", fields[3], 1, 12)
	if err != nil {
		return Expression{}, err
	}
	dayOfWeek, err := parseField("dayOfWeek", fields[4], 0, 6)
	if err != nil {
		return Expression{}, err
	}

	return Expression{
		original:   strings.Join(fields, " "),
		minute:     minute,
		hour:       hour,
		dayOfMonth: dayOfMonth,
		month:      month,
		dayOfWeek:  dayOfWeek,
	}, nil
}

// Matches reports whether t satisfies the expression at minute
// resolution (spec §4.1). When both dayOfMonth and dayOfWeek are
// non-wildcard, either matching is sufficient (the POSIX rule); when
// exactly one is wildcard, the other must match.
func (e Expression) Matches(t clock.DateTime) bool {
	if !e.minute.matches(t.Minute()) {
		return false
	}
	if !e.hour.matches(t.Hour()) {
		return false
	}
	if !e.month.matches(t.Month()) {
		return false
	}

	domMatch := e.dayOfMonth.matches(t.Day())
	dowMatch := e.dayOfWeek.matches(t.DayOfWeek())

	switch {
	case !e.dayOfMonth.wildcard && !e.dayOfWeek.wildcard:
		return domMatch || dowMatch
	case e.dayOfMonth.wildcard && e.dayOfWeek.wildcard:
		return true
	case e.dayOfMonth.wildcard:
		return dowMatch
	default:
		return domMatch
	}
}

// lookAheadMonths bounds NextAfter's forward search, per spec §4.1,
// protecting against unsatisfiable combinations such as "0 0 31 2 *".
const lookAheadMonths = 4 * 12

// NextAfter returns the smallest DateTime strictly greater than t
// (minute resolution) that matches the expression. Returns
// ErrNoNextFireWithinHorizon if none exists within a 4-year look-ahead.
func (e Expression) NextAfter(t clock.DateTime) (clock.DateTime, error) {
	cursor := t.WithMinuteResolution().AddDuration(clock.FromMinutes(1))
	limit := t.WithMinuteResolution().AddDuration(clock.FromHours(int64(lookAheadMonths) * 31 * 24))

	// Linear minute scan: simpler to get right than carrying field
	// overflow by hand, and still bounded by the fixed horizon above.
	for !cursor.After(limit) {
		if e.Matches(cursor) {
			return cursor, nil
		}
		cursor = cursor.AddDuration(clock.FromMinutes(1))
	}
	return clock.DateTime{}, ErrNoNextFireWithinHorizon
}

// MostRecentFireInWindow returns the latest matching instant in
// (after, upTo], scanning backward minute by minute from upTo. The
// scheduler uses this to implement "no make-up" semantics (spec §4.5):
// when many fires were missed between ticks, only the nearest one is
// ever chosen, never the whole backlog.
func (e Expression) MostRecentFireInWindow(after, upTo clock.DateTime) (clock.DateTime, bool) {
	cursor := upTo.WithMinuteResolution()
	floor := after.WithMinuteResolution()

	for cursor.After(floor) {
		if e.Matches(cursor) {
			return cursor, true
		}
		cursor = cursor.SubtractDuration(clock.FromMinutes(1))
	}
	return clock.DateTime{}, false
}
