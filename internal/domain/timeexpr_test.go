package domain

import (
	"testing"
	"time"
)

// helper: reference "now" in Moscow, Monday 2025-05-05 14:30
func refNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return time.Date(2025, time.May, 5, 14, 30, 0, 0, loc)
}

func mustResolve(t *testing.T, text string, now time.Time) TimeMatch {
	t.Helper()
	m, ok := ResolveTime(text, now)
	if !ok {
		t.Fatalf("ResolveTime(%q): no match", text)
	}
	return m
}

func TestResolveTime_DayWordWithClock(t *testing.T) {
	now := refNow(t)
	cases := []struct {
		text string
		want time.Time
	}{
		{"tomorrow 6pm", time.Date(2025, 5, 6, 18, 0, 0, 0, now.Location())},
		{"tomorrow at 9:15am", time.Date(2025, 5, 6, 9, 15, 0, 0, now.Location())},
		{"today 17:45", time.Date(2025, 5, 5, 17, 45, 0, 0, now.Location())},
		{"6pm tomorrow", time.Date(2025, 5, 6, 18, 0, 0, 0, now.Location())},
		{"tonight 9", time.Date(2025, 5, 5, 21, 0, 0, 0, now.Location())},
		{"tmrw 12am", time.Date(2025, 5, 6, 0, 0, 0, 0, now.Location())},
	}
	for _, c := range cases {
		got := mustResolve(t, c.text, now).At
		if !got.Equal(c.want) {
			t.Errorf("%q: want %s, got %s", c.text, c.want, got)
		}
	}
}

func TestResolveTime_DayWordDefaults(t *testing.T) {
	now := refNow(t)
	if got := mustResolve(t, "tomorrow", now).At; !got.Equal(time.Date(2025, 5, 6, 9, 0, 0, 0, now.Location())) {
		t.Fatalf("tomorrow: got %s", got)
	}
	if got := mustResolve(t, "today", now).At; !got.Equal(EndOfDay(now, now.Location())) {
		t.Fatalf("today: got %s", got)
	}
	if got := mustResolve(t, "tonight", now).At; got.Hour() != 20 {
		t.Fatalf("tonight: got %s", got)
	}
}

func TestResolveTime_Relative(t *testing.T) {
	now := refNow(t)
	cases := map[string]time.Duration{
		"in 2 hours":      2 * time.Hour,
		"in 30 minutes":   30 * time.Minute,
		"in 45m":          45 * time.Minute,
		"in an hour":      time.Hour,
		"in half an hour": 30 * time.Minute,
		"in 3 days":       72 * time.Hour,
		"in 1 week":       7 * 24 * time.Hour,
		"call in 10 mins": 10 * time.Minute,
		"in 25h":          25 * time.Hour,
	}
	for text, d := range cases {
		got := mustResolve(t, text, now).At
		if !got.Equal(now.Add(d)) {
			t.Errorf("%q: want %s, got %s", text, now.Add(d), got)
		}
	}
}

func TestResolveTime_BareClockNeverInPast(t *testing.T) {
	now := refNow(t)
	for _, text := range []string{"at 9", "9am", "at 14:30", "10:00", "at 3pm", "noon", "midnight", "at 11pm"} {
		got := mustResolve(t, text, now).At
		if !got.After(now) {
			t.Errorf("%q resolved to %s, not after %s", text, got, now)
		}
		if got.Sub(now) > 24*time.Hour {
			t.Errorf("%q resolved more than a day ahead: %s", text, got)
		}
	}

	if got := mustResolve(t, "at 3pm", now).At; !got.Equal(time.Date(2025, 5, 5, 15, 0, 0, 0, now.Location())) {
		t.Fatalf("at 3pm: got %s", got)
	}
	if got := mustResolve(t, "9am", now).At; !got.Equal(time.Date(2025, 5, 6, 9, 0, 0, 0, now.Location())) {
		t.Fatalf("9am: got %s", got)
	}
}

func TestResolveTime_Weekday(t *testing.T) {
	now := refNow(t) // Monday
	if got := mustResolve(t, "on friday at 10am", now).At; !got.Equal(time.Date(2025, 5, 9, 10, 0, 0, 0, now.Location())) {
		t.Fatalf("friday: got %s", got)
	}
	if got := mustResolve(t, "monday", now).At; !got.Equal(time.Date(2025, 5, 12, 9, 0, 0, 0, now.Location())) {
		t.Fatalf("monday: got %s", got)
	}
}

func TestResolveTime_NoMatch(t *testing.T) {
	now := refNow(t)
	for _, text := range []string{"buy milk", "buy 2 apples", "13pm", "call mom", "in a meeting", "1h30m", "year 2025", "in 999999999999 hours"} {
		if m, ok := ResolveTime(text, now); ok {
			t.Errorf("%q: unexpected match %s [%d:%d]", text, m.At, m.Start, m.End)
		}
	}
}

func TestResolveTime_Span(t *testing.T) {
	now := refNow(t)
	text := "call mom tomorrow 6pm please"
	m := mustResolve(t, text, now)
	if got := text[m.Start:m.End]; got != "tomorrow 6pm" {
		t.Fatalf("span: got %q", got)
	}
}

func TestNextOccurrence_Normalises(t *testing.T) {
	now := refNow(t)
	got := NextOccurrence(now, 25, 0)
	want := time.Date(2025, 5, 6, 1, 0, 0, 0, now.Location())
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestResolveTime_NamedClockWithDay(t *testing.T) {
	now := refNow(t) // Monday
	cases := []struct {
		text string
		want time.Time
	}{
		{"tomorrow at noon", time.Date(2025, 5, 6, 12, 0, 0, 0, now.Location())},
		{"tomorrow noon", time.Date(2025, 5, 6, 12, 0, 0, 0, now.Location())},
		{"noon tomorrow", time.Date(2025, 5, 6, 12, 0, 0, 0, now.Location())},
		{"at midday tmrw", time.Date(2025, 5, 6, 12, 0, 0, 0, now.Location())},
		{"today at midnight", time.Date(2025, 5, 6, 0, 0, 0, 0, now.Location())},
		{"tomorrow midnight", time.Date(2025, 5, 7, 0, 0, 0, 0, now.Location())},
		{"friday at noon", time.Date(2025, 5, 9, 12, 0, 0, 0, now.Location())},
		{"noon on friday", time.Date(2025, 5, 9, 12, 0, 0, 0, now.Location())},
		{"10am monday", time.Date(2025, 5, 12, 10, 0, 0, 0, now.Location())},
	}
	for _, c := range cases {
		m := mustResolve(t, c.text, now)
		if !m.At.Equal(c.want) {
			t.Errorf("%q: want %s, got %s", c.text, c.want, m.At)
		}
		if m.Start != 0 || m.End != len(c.text) {
			t.Errorf("%q: span %q does not cover the phrase", c.text, c.text[m.Start:m.End])
		}
	}
}

func TestResolveTime_NumberAfterDayWordIsQuantity(t *testing.T) {
	now := refNow(t)
	cases := []struct {
		text string
		span string
		want time.Time
	}{
		{"buy tomorrow 2 apples", "tomorrow", time.Date(2025, 5, 6, 9, 0, 0, 0, now.Location())},
		{"order friday 3 tickets", "friday", time.Date(2025, 5, 9, 9, 0, 0, 0, now.Location())},
		{"buy 2 tomorrow at 6pm", "tomorrow at 6pm", time.Date(2025, 5, 6, 18, 0, 0, 0, now.Location())},
		{"call mom tomorrow 6", "tomorrow 6", time.Date(2025, 5, 6, 6, 0, 0, 0, now.Location())},
	}
	for _, c := range cases {
		m := mustResolve(t, c.text, now)
		if got := c.text[m.Start:m.End]; got != c.span {
			t.Errorf("%q: span want %q, got %q", c.text, c.span, got)
		}
		if !m.At.Equal(c.want) {
			t.Errorf("%q: want %s, got %s", c.text, c.want, m.At)
		}
	}
}
