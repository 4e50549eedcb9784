package domain

import "testing"

func TestParseIntent_Commands(t *testing.T) {
	cases := []struct {
		text    string
		kind    IntentKind
		payload string
	}{
		{"/add buy milk", IntentAdd, "buy milk"},
		{"/ADD buy milk", IntentAdd, "buy milk"},
		{"/list", IntentList, ""},
		{"/today", IntentToday, ""},
		{"/next@taskmate_bot", IntentNext, ""},
		{"/done 2", IntentDone, "2"},
		{"/snooze 1 1h30m", IntentSnooze, "1 1h30m"},
		{"/tz Europe/Berlin", IntentTZ, "Europe/Berlin"},
	}
	for _, c := range cases {
		got := ParseIntent(c.text)
		if got.Kind != c.kind || !got.Explicit || got.Payload != c.payload {
			t.Errorf("%q: got %+v", c.text, got)
		}
	}

	got := ParseIntent("/snooze 1 1h30m")
	if len(got.Args) != 2 || got.Args[0] != "1" || got.Args[1] != "1h30m" {
		t.Fatalf("args: %v", got.Args)
	}
}

func TestParseIntent_UnknownCommandIsTaskText(t *testing.T) {
	got := ParseIntent("/frobnicate the report")
	if got.Kind != IntentNone || got.Payload != "/frobnicate the report" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseIntent_Natural(t *testing.T) {
	cases := map[string]IntentKind{
		"what's next?":         IntentNext,
		"Whats next":           IntentNext,
		"next task":            IntentNext,
		"today's tasks":        IntentToday,
		"what's on today?":     IntentToday,
		"show my tasks":        IntentList,
		"list all tasks":       IntentList,
		"my tasks":             IntentList,
		"buy milk":             IntentNone,
		"finish report at 5":   IntentNone,
		"remind me to call":    IntentAdd,
		"add water the plants": IntentAdd,
	}
	for text, want := range cases {
		if got := ParseIntent(text); got.Kind != want {
			t.Errorf("%q: want %s, got %s", text, want, got.Kind)
		}
	}
}

func TestParseIntent_DoneWithIndex(t *testing.T) {
	cases := map[string]int{
		"mark task 2 done":          2,
		"task 3 is done":            3,
		"done with task #4":         4,
		"I finished the second one": 2,
		"completed the 3rd task":    3,
	}
	for text, want := range cases {
		got := ParseIntent(text)
		if got.Kind != IntentDone || got.Index != want {
			t.Errorf("%q: want done #%d, got %+v", text, want, got)
		}
	}
}

func TestParseIntent_DoneWithoutIndexIsTaskText(t *testing.T) {
	got := ParseIntent("finish the quarterly report")
	if got.Kind != IntentNone {
		t.Fatalf("got %+v", got)
	}
}

func TestParseIntent_AddStripsPrefix(t *testing.T) {
	got := ParseIntent("remind me to call mom tomorrow 6pm")
	if got.Kind != IntentAdd || got.Payload != "call mom tomorrow 6pm" {
		t.Fatalf("got %+v", got)
	}
}
