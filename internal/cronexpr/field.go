package cronexpr

import (
	"sort"
	"strconv"
	"strings"
)

// field is a single parsed cron field: either "wildcard" (every value in
// [low, high] domain) or an explicit sorted, deduplicated integer list.
type field struct {
	wildcard bool
	values   []int // sorted, deduplicated; unused when wildcard
	low, high int
}

func newWildcardField(low, high int) field {
	return field{wildcard: true, low: low, high: high}
}

// matches reports whether v satisfies the field.
func (f field) matches(v int) bool {
	if f.wildcard {
		return v >= f.low && v <= f.high
	}
	i := sort.SearchInts(f.values, v)
	return i < len(f.values) && f.values[i] == v
}

// parseField parses one of the five whitespace-separated tokens of a
// cron expression into a field, per the grammar in spec §4.1:
// "*", "N", "A-B", "*/S", "A-B/S", and comma-separated lists thereof.
func parseField(name, text string, low, high int) (field, error) {
	parts := strings.Split(text, ",")
	set := make(map[int]struct{})

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return field{}, invalid(name, "empty term")
		}

		base, step, hasStep, err := splitStep(part)
		if err != nil {
			return field{}, invalid(name, err.Error())
		}
		if hasStep && step < 1 {
			return field{}, invalid(name, "step must be >= 1")
		}
		if !hasStep {
			step = 1
		}

		var rangeLow, rangeHigh int
		switch {
		case base == "*":
			rangeLow, rangeHigh = low, high
		case strings.Contains(base, "-"):
			a, b, err := splitRange(base)
			if err != nil {
				return field{}, invalid(name, err.Error())
			}
			if a > b {
				return field{}, invalid(name, "range start exceeds end")
			}
			rangeLow, rangeHigh = a, b
		default:
			n, err := strconv.Atoi(base)
			if err != nil {
				return field{}, invalid(name, "unparseable token: "+base)
			}
			rangeLow, rangeHigh = n, n
			if hasStep {
				// "N/S" is accepted as "N-high/S" (every Sth value from N).
				rangeHigh = high
			}
		}

		if rangeLow < low || rangeHigh > high {
			return field{}, invalid(name, "value out of domain")
		}

		for v := rangeLow; v <= rangeHigh; v += step {
			set[v] = struct{}{}
		}
	}

	if len(set) == 0 {
		return field{}, invalid(name, "field yields no values")
	}

	values := make([]int, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Ints(values)

	// Collapse full-domain coverage to wildcard form for fast matching,
	// per spec §4.1, regardless of which tokens produced it.
	if len(values) == high-low+1 && values[0] == low && values[len(values)-1] == high {
		return newWildcardField(low, high), nil
	}
	return field{values: values, low: low, high: high}, nil
}

// splitStep splits "base/step" into its parts. Returns hasStep=false
// when there is no "/".
func splitStep(part string) (base string, step int, hasStep bool, err error) {
	idx := strings.IndexByte(part, '/')
	if idx < 0 {
		return part, 0, false, nil
	}
	base = part[:idx]
	stepStr := part[idx+1:]
	n, convErr := strconv.Atoi(stepStr)
	if convErr != nil {
		return "", 0, false, errUnparseableStep(stepStr)
	}
	return base, n, true, nil
}

func errUnparseableStep(s string) error {
	return &simpleErr{"unparseable step: " + s}
}

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }

// splitRange splits "A-B" into integer bounds.
func splitRange(s string) (int, int, error) {
	idx := strings.IndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return 0, 0, &simpleErr{"malformed range: " + s}
	}
	a, err := strconv.Atoi(s[:idx])
	if err != nil {
		return 0, 0, &simpleErr{"malformed range start: " + s}
	}
	b, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return 0, 0, &simpleErr{"malformed range end: " + s}
	}
	return a, b, nil
}
