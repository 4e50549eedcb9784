package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// MissingTimePolicy decides what happens to task text without a time phrase.
type MissingTimePolicy string

const (
	// PolicyEndOfDay gives untimed tasks a due instant at the end of the day.
	PolicyEndOfDay MissingTimePolicy = "end_of_day"
	// PolicyClarify asks the user to add a time instead of creating the task.
	PolicyClarify MissingTimePolicy = "clarify"
)

// Valid reports whether p is a known policy.
func (p MissingTimePolicy) Valid() bool {
	return p == PolicyEndOfDay || p == PolicyClarify
}

const maxTitleRunes = 256

// Candidate is a task extracted from free text, not yet persisted.
type Candidate struct {
	Title string
	DueAt time.Time
	Timed bool // false when DueAt is the end-of-day default
}

var (
	segmentSepRe  = regexp.MustCompile(`(?i)\r?\n|;|\s+and\s+then\s+|,\s*(?:and\s+)?then\s+|,\s*also\s+`)
	listMarkerRe  = regexp.MustCompile(`^\s*(?:[-*•]+|\d{1,2}[.)])\s+`)
	danglingRe    = regexp.MustCompile(`(?i)(?:\s+(?:at|by|on|due|for|until|before))+\s*$`)
	spaceRe       = regexp.MustCompile(`\s+`)
	trailingPunct = ",.;:!?-–— "
)

// SplitSegments cuts text into task-sized pieces on line breaks, semicolons
// and list conjunctions ("and then", ", then", ", also").
func SplitSegments(text string) []string {
	parts := segmentSepRe.Split(text, -1)
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = listMarkerRe.ReplaceAllString(p, "")
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}

// DefaultDue is the due instant given to tasks with no time phrase.
func DefaultDue(now time.Time) time.Time {
	return EndOfDay(now, now.Location())
}

// ExtractTasks turns free text into task candidates in input order. Each
// segment is resolved against now; the matched time phrase is removed from
// the title. Segments whose title ends up empty are dropped. The result only
// depends on text and now.
func ExtractTasks(text string, now time.Time) []Candidate {
	var res []Candidate
	for _, seg := range SplitSegments(text) {
		if loc := addRe.FindStringIndex(seg); loc != nil {
			seg = seg[loc[1]:]
		}

		c := Candidate{DueAt: DefaultDue(now)}
		title := seg
		if m, ok := ResolveTime(seg, now); ok {
			c.DueAt = m.At
			c.Timed = true
			title = seg[:m.Start] + " " + seg[m.End:]
		}

		c.Title = cleanTitle(title)
		if c.Title == "" {
			continue
		}
		res = append(res, c)
	}
	return res
}

func cleanTitle(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, trailingPunct)
	s = danglingRe.ReplaceAllString(s, "")
	s = strings.Trim(s, trailingPunct)
	if !strings.ContainsFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return ""
	}
	if r := []rune(s); len(r) > maxTitleRunes {
		s = strings.TrimSpace(string(r[:maxTitleRunes]))
	}
	return s
}
