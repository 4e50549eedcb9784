package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TimeMatch is a resolved time phrase and its byte span in the source text.
type TimeMatch struct {
	At    time.Time
	Start int
	End   int
}

// Default clock times for day words used without an explicit time.
const (
	tomorrowDefaultHour = 9
	tonightDefaultHour  = 20
	weekdayDefaultHour  = 9
)

const (
	clockPattern   = `(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`
	namedPattern   = `(noon|midday|midnight)`
	dayPattern     = `(today|tonight|tomorrow|tmrw|tmr)`
	weekdayPattern = `(?:on\s+|next\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`

	// atClockPattern captures at, hour, minute, meridiem and named groups.
	atClockPattern = `(?:\b(at)\s+)?\b(?:` + clockPattern + `|` + namedPattern + `)`
)

var (
	relativeRe     = regexp.MustCompile(`(?i)\bin\s+(\d+|an?|half\s+an?)\s*(weeks?|w|days?|d|hours?|hrs?|h|minutes?|mins?|m)\b`)
	clockDayRe     = regexp.MustCompile(`(?i)` + atClockPattern + `\s+` + dayPattern + `\b`)
	dayClockRe     = regexp.MustCompile(`(?i)\b` + dayPattern + `\b(?:\s+` + atClockPattern + `\b)?`)
	clockWeekdayRe = regexp.MustCompile(`(?i)` + atClockPattern + `\s+` + weekdayPattern + `\b`)
	weekdayRe      = regexp.MustCompile(`(?i)\b` + weekdayPattern + `\b(?:\s+` + atClockPattern + `\b)?`)
	bareRe         = regexp.MustCompile(`(?i)(?:\b(at)\s+)?\b` + clockPattern + `\b`)
	namedRe        = regexp.MustCompile(`(?i)(?:\bat\s+)?\b` + namedPattern + `\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type timeMatcher func(text string, now time.Time) (TimeMatch, bool)

// Matchers in priority order. The first one that recognises a phrase wins.
var timeMatchers = []timeMatcher{
	matchRelative,
	matchClockDay,
	matchDayClock,
	matchClockWeekday,
	matchWeekday,
	matchBareClock,
	matchNamedClock,
}

// ResolveTime finds the first recognisable time phrase in text and resolves it
// against now. The location of now is the reference timezone. Phrases that
// cannot be resolved unambiguously yield no match.
func ResolveTime(text string, now time.Time) (TimeMatch, bool) {
	for _, m := range timeMatchers {
		if tm, ok := m(text, now); ok {
			return tm, true
		}
	}
	return TimeMatch{}, false
}

func matchRelative(text string, now time.Time) (TimeMatch, bool) {
	loc := relativeRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return TimeMatch{}, false
	}
	qty := strings.ToLower(text[loc[2]:loc[3]])
	unit := strings.ToLower(text[loc[4]:loc[5]])

	var at time.Time
	switch {
	case strings.HasPrefix(qty, "half"):
		at = now.Add(unitDuration(unit) / 2)
	default:
		n := 1
		if qty != "a" && qty != "an" {
			v, err := strconv.Atoi(qty)
			if err != nil {
				return TimeMatch{}, false
			}
			n = v
		}
		d, ok := scaleDuration(n, unitDuration(unit))
		if !ok {
			return TimeMatch{}, false
		}
		switch unit[0] {
		case 'w':
			at = now.AddDate(0, 0, 7*n)
		case 'd':
			at = now.AddDate(0, 0, n)
		default:
			at = now.Add(d)
		}
	}
	return TimeMatch{At: at, Start: loc[0], End: loc[1]}, true
}

// matchClockDay handles "6pm tomorrow" and "noon tomorrow".
func matchClockDay(text string, now time.Time) (TimeMatch, bool) {
	for _, loc := range clockDayRe.FindAllStringSubmatchIndex(text, -1) {
		day := strings.ToLower(text[loc[12]:loc[13]])
		hh, mm, ok := readClock(text, loc[2:12], day)
		if !ok {
			continue
		}
		return TimeMatch{At: atClock(now, dayOffset(day), hh, mm), Start: loc[0], End: loc[1]}, true
	}
	return TimeMatch{}, false
}

func matchDayClock(text string, now time.Time) (TimeMatch, bool) {
	loc := dayClockRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return TimeMatch{}, false
	}
	day := strings.ToLower(text[loc[2]:loc[3]])
	if loc[6] < 0 && loc[12] < 0 {
		return TimeMatch{At: dayDefault(day, now), Start: loc[0], End: loc[1]}, true
	}
	hh, mm, ok := readClock(text, loc[4:14], day)
	if !ok {
		// "tomorrow 13pm" or "tomorrow 2 apples": keep the day word only.
		return TimeMatch{At: dayDefault(day, now), Start: loc[0], End: loc[3]}, true
	}
	return TimeMatch{At: atClock(now, dayOffset(day), hh, mm), Start: loc[0], End: loc[1]}, true
}

// matchClockWeekday handles "noon on friday" and "10am monday".
func matchClockWeekday(text string, now time.Time) (TimeMatch, bool) {
	for _, loc := range clockWeekdayRe.FindAllStringSubmatchIndex(text, -1) {
		hh, mm, ok := readClock(text, loc[2:12], "")
		if !ok {
			continue
		}
		wd := weekdays[strings.ToLower(text[loc[12]:loc[13]])]
		return TimeMatch{At: atClock(now, daysUntil(now, wd), hh, mm), Start: loc[0], End: loc[1]}, true
	}
	return TimeMatch{}, false
}

func matchWeekday(text string, now time.Time) (TimeMatch, bool) {
	loc := weekdayRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return TimeMatch{}, false
	}
	ahead := daysUntil(now, weekdays[strings.ToLower(text[loc[2]:loc[3]])])
	hh, mm, end := weekdayDefaultHour, 0, loc[1]
	if loc[6] >= 0 || loc[12] >= 0 {
		h, m, ok := readClock(text, loc[4:14], "")
		if ok {
			hh, mm = h, m
		} else {
			end = loc[3]
		}
	}
	return TimeMatch{At: atClock(now, ahead, hh, mm), Start: loc[0], End: end}, true
}

// daysUntil counts days to the next wd strictly after now's day.
func daysUntil(now time.Time, wd time.Weekday) int {
	ahead := (int(wd) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return ahead
}

// readClock reads the groups of atClockPattern next to a day word. g holds
// the submatch indexes of the at, hour, minute, meridiem and named groups.
// A lone number without "at" is a clock only when no word follows it, so
// "tomorrow 2 apples" keeps the number in the title.
func readClock(text string, g []int, day string) (hh, mm int, ok bool) {
	if g[8] >= 0 {
		return namedHour(text[g[8]:g[9]]), 0, true
	}
	hh, mm, ok = clockFromGroups(text, g[2:8], true)
	if !ok {
		return 0, 0, false
	}
	bareHour := g[0] < 0 && g[4] < 0 && g[6] < 0
	if bareHour && wordFollows(text, g[3]) {
		return 0, 0, false
	}
	return adjustTonight(day, hh, g[6] >= 0), mm, true
}

func wordFollows(text string, pos int) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimLeft(text[pos:], " \t"))
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// namedHour maps noon to 12:00 and midnight to the end of its day.
func namedHour(word string) int {
	if strings.EqualFold(word, "midnight") {
		return 24
	}
	return 12
}

// matchBareClock resolves a clock without a day word to its next future
// occurrence. A plain number only counts when it is introduced by "at" or
// carries minutes or am/pm, so "buy 2 apples" stays untimed.
func matchBareClock(text string, now time.Time) (TimeMatch, bool) {
	for _, loc := range bareRe.FindAllStringSubmatchIndex(text, -1) {
		hasAt := loc[2] >= 0
		hh, mm, ok := clockFromGroups(text, loc[4:10], hasAt)
		if !ok {
			continue
		}
		return TimeMatch{At: NextOccurrence(now, hh, mm), Start: loc[0], End: loc[1]}, true
	}
	return TimeMatch{}, false
}

func matchNamedClock(text string, now time.Time) (TimeMatch, bool) {
	loc := namedRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return TimeMatch{}, false
	}
	hh := namedHour(text[loc[2]:loc[3]])
	return TimeMatch{At: NextOccurrence(now, hh, 0), Start: loc[0], End: loc[1]}, true
}

// clockFromGroups converts hour/minute/meridiem submatch indexes into a 24h
// clock. bare reports whether a lone hour is acceptable.
func clockFromGroups(text string, g []int, bare bool) (hh, mm int, ok bool) {
	if g[0] < 0 {
		return 0, 0, false
	}
	hasMinutes := g[2] >= 0
	hasMeridiem := g[4] >= 0
	if !bare && !hasMinutes && !hasMeridiem {
		return 0, 0, false
	}

	hh, _ = strconv.Atoi(text[g[0]:g[1]])
	if hasMinutes {
		mm, _ = strconv.Atoi(text[g[2]:g[3]])
	}
	if hasMeridiem {
		if hh < 1 || hh > 12 {
			return 0, 0, false
		}
		pm := strings.EqualFold(text[g[4]:g[5]], "pm")
		switch {
		case pm && hh < 12:
			hh += 12
		case !pm && hh == 12:
			hh = 0
		}
	}
	return hh, mm, true
}

func dayOffset(day string) int {
	switch day {
	case "tomorrow", "tmrw", "tmr":
		return 1
	default:
		return 0
	}
}

// adjustTonight reads "tonight 9" as 21:00.
func adjustTonight(day string, hh int, hasMeridiem bool) int {
	if day == "tonight" && !hasMeridiem && hh < 12 {
		return hh + 12
	}
	return hh
}

func dayDefault(day string, now time.Time) time.Time {
	switch day {
	case "tonight":
		return atClock(now, 0, tonightDefaultHour, 0)
	case "today":
		return EndOfDay(now, now.Location())
	default:
		return atClock(now, 1, tomorrowDefaultHour, 0)
	}
}
