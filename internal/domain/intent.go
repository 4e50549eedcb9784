package domain

import (
	"regexp"
	"strings"
)

// IntentKind classifies an inbound message.
type IntentKind string

const (
	IntentNone   IntentKind = "none" // free text, goes to the extractor
	IntentStart  IntentKind = "start"
	IntentHelp   IntentKind = "help"
	IntentAdd    IntentKind = "add"
	IntentNext   IntentKind = "next"
	IntentToday  IntentKind = "today"
	IntentList   IntentKind = "list"
	IntentDone   IntentKind = "done"
	IntentSnooze IntentKind = "snooze"
	IntentTZ     IntentKind = "tz"
)

// Intent is the parsed form of one inbound message.
type Intent struct {
	Kind     IntentKind
	Explicit bool     // came from a slash command
	Args     []string // positional arguments of a slash command
	Payload  string   // text after the verb or the add prefix
	Index    int      // 1-based task index for natural "done" phrases, 0 if none
}

var commandVerbs = map[string]IntentKind{
	"start":  IntentStart,
	"help":   IntentHelp,
	"add":    IntentAdd,
	"next":   IntentNext,
	"today":  IntentToday,
	"list":   IntentList,
	"tasks":  IntentList,
	"done":   IntentDone,
	"snooze": IntentSnooze,
	"tz":     IntentTZ,
}

var (
	nextRe  = regexp.MustCompile(`(?i)^(?:(?:what['’]?s|whats|what\s+is)\s+next|next\s+task|what\s+should\s+i\s+do\s+next)\s*[?!.]*$`)
	todayRe = regexp.MustCompile(`(?i)^(?:today['’]?s\s+tasks|tasks\s+(?:for\s+)?today|(?:what['’]?s|whats|what\s+is)\s+(?:on\s+|for\s+)?today|what\s+do\s+i\s+have\s+today)\s*[?!.]*$`)
	listRe  = regexp.MustCompile(`(?i)^(?:(?:list|show)(?:\s+all)?(?:\s+(?:my|the))?\s+tasks|(?:all\s+)?my\s+tasks)\s*[?!.]*$`)
	doneRe  = regexp.MustCompile(`(?i)\b(?:mark|done|complete|completed|finish|finished|tick|check\s+off)\b`)
	addRe   = regexp.MustCompile(`(?i)^\s*(?:add|remind\s+me\s+to|remember\s+to|todo:|task:)\s+`)

	taskNumRe = regexp.MustCompile(`(?i)(?:\btask\s*#?|#)(\d+)\b`)
	ordinalRe = regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|\d+(?:st|nd|rd|th))\s+(?:one|task)\b`)
)

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

// ParseIntent classifies text. Slash commands win over natural phrases;
// unknown slash verbs and unrecognised phrases come back as IntentNone so the
// caller can treat the message as task text.
func ParseIntent(text string) Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return Intent{Kind: IntentNone}
	}
	if strings.HasPrefix(text, "/") {
		if in, ok := parseCommand(text); ok {
			return in
		}
		return Intent{Kind: IntentNone, Payload: text}
	}
	return parseNatural(text)
}

func parseCommand(text string) (Intent, bool) {
	fields := strings.Fields(text)
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	kind, ok := commandVerbs[verb]
	if !ok {
		return Intent{}, false
	}
	payload := strings.TrimSpace(text[len(fields[0]):])
	return Intent{Kind: kind, Explicit: true, Args: fields[1:], Payload: payload}, true
}

func parseNatural(text string) Intent {
	switch {
	case nextRe.MatchString(text):
		return Intent{Kind: IntentNext}
	case todayRe.MatchString(text):
		return Intent{Kind: IntentToday}
	case listRe.MatchString(text):
		return Intent{Kind: IntentList}
	}

	if doneRe.MatchString(text) {
		if idx, ok := ExtractIndex(text); ok {
			return Intent{Kind: IntentDone, Index: idx}
		}
	}

	if loc := addRe.FindStringIndex(text); loc != nil {
		return Intent{Kind: IntentAdd, Payload: strings.TrimSpace(text[loc[1]:])}
	}
	return Intent{Kind: IntentNone, Payload: text}
}

// ExtractIndex finds an ordinal task reference such as "task 2", "#3" or
// "the second one".
func ExtractIndex(text string) (int, bool) {
	if m := taskNumRe.FindStringSubmatch(text); m != nil {
		if n, err := ParseIndex(m[1]); err == nil {
			return n, true
		}
	}
	if m := ordinalRe.FindStringSubmatch(text); m != nil {
		word := strings.ToLower(m[1])
		if n, ok := ordinals[word]; ok {
			return n, true
		}
		digits := strings.TrimRight(word, "stndrh")
		if n, err := ParseIndex(digits); err == nil {
			return n, true
		}
	}
	return 0, false
}
