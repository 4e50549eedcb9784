package domain

import "time"

// End of the reference day used for tasks without an explicit time.
const (
	endOfDayHour   = 23
	endOfDayMinute = 59
)

// StartOfDay returns local midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59 of t's local day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), endOfDayHour, endOfDayMinute, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// atClock places hh:mm on the day that is dayOffset days after base's local day.
// Out-of-range values are normalised by time.Date.
func atClock(base time.Time, dayOffset, hh, mm int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day()+dayOffset, hh, mm, 0, 0, base.Location())
}

// NextOccurrence returns the first instant strictly after now at hh:mm local time.
func NextOccurrence(now time.Time, hh, mm int) time.Time {
	t := atClock(now, 0, hh, mm)
	for !t.After(now) {
		t = atClock(t, 1, hh, mm)
	}
	return t
}

// DueDay places a due instant relative to the local day of now.
type DueDay int

const (
	DueToday DueDay = iota
	DueTomorrow
	DueThisYear
	DueOtherYear
)

// ClassifyDue reports which DueDay due falls on in loc.
func ClassifyDue(due, now time.Time, loc *time.Location) DueDay {
	switch {
	case SameDay(due, now, loc):
		return DueToday
	case SameDay(due, now.In(loc).AddDate(0, 0, 1), loc):
		return DueTomorrow
	case due.In(loc).Year() == now.In(loc).Year():
		return DueThisYear
	default:
		return DueOtherYear
	}
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}
