package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDuration   = errors.New("empty duration")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidIndex    = errors.New("invalid task index")
)

var (
	durationRe      = regexp.MustCompile(`^(?:\s*\d+\s*(?:weeks?|w|days?|d|hours?|hrs?|h|minutes?|mins?|m)\s*)+$`)
	durationGroupRe = regexp.MustCompile(`(\d+)\s*(weeks?|w|days?|d|hours?|hrs?|h|minutes?|mins?|m)`)
)

// ParseDuration parses short human durations used for snoozing:
// "30m", "2h", "1d", "1h30m", "1h 30m", "2 hours". Values are not
// range-checked, so "25h" or "90m" are fine, but a total that does not fit
// a time.Duration is rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyDuration
	}
	if !durationRe.MatchString(s) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
	}

	var total time.Duration
	for _, g := range durationGroupRe.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(g[1])
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
		}
		d, ok := scaleDuration(n, unitDuration(g[2]))
		if !ok || total > math.MaxInt64-d {
			return 0, fmt.Errorf("%w: %s out of range", ErrInvalidDuration, s)
		}
		total += d
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
	}
	return total, nil
}

func unitDuration(unit string) time.Duration {
	switch unit[0] {
	case 'w':
		return 7 * 24 * time.Hour
	case 'd':
		return 24 * time.Hour
	case 'h':
		return time.Hour
	default:
		return time.Minute
	}
}

// scaleDuration returns n units and false when the product overflows.
func scaleDuration(n int, unit time.Duration) (time.Duration, bool) {
	if n < 0 || time.Duration(n) > math.MaxInt64/unit {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// ParseIndex parses a 1-based task index. Only positive integers are accepted.
func ParseIndex(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, s)
	}
	return n, nil
}

// SnoozeTarget is either a delay relative to now or an absolute instant.
type SnoozeTarget struct {
	Delay time.Duration
	At    time.Time
}

// Resolve returns the new due instant for the target.
func (t SnoozeTarget) Resolve(now time.Time) time.Time {
	if !t.At.IsZero() {
		return t.At
	}
	return now.Add(t.Delay)
}

// ParseSnoozeTarget accepts a duration token ("1h30m") or any time phrase the
// resolver understands ("tomorrow 9am").
func ParseSnoozeTarget(s string, now time.Time) (SnoozeTarget, error) {
	if d, err := ParseDuration(s); err == nil {
		return SnoozeTarget{Delay: d}, nil
	}
	if m, ok := ResolveTime(s, now); ok {
		return SnoozeTarget{At: m.At}, nil
	}
	return SnoozeTarget{}, fmt.Errorf("%w: %s", ErrInvalidDuration, strings.TrimSpace(s))
}
