package domain

import (
	"errors"
	"testing"
	"time"
)

func TestOpenView_SortsAndSkipsDone(t *testing.T) {
	base := time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "c", DueAt: base.Add(3 * time.Hour), Status: TaskStatusOpen},
		{ID: "a", DueAt: base.Add(1 * time.Hour), Status: TaskStatusOpen},
		{ID: "x", DueAt: base, Status: TaskStatusDone},
		{ID: "b", DueAt: base.Add(2 * time.Hour), Status: TaskStatusOpen},
	}
	view := OpenView(tasks)
	if len(view) != 3 {
		t.Fatalf("want 3 open tasks, got %d", len(view))
	}
	for i, id := range []string{"a", "b", "c"} {
		if view[i].ID != id {
			t.Fatalf("position %d: want %s, got %s", i+1, id, view[i].ID)
		}
	}
	if tasks[0].ID != "c" {
		t.Fatal("input slice was reordered")
	}
}

func TestTaskAt(t *testing.T) {
	view := []Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got, err := TaskAt(view, 2)
	if err != nil || got.ID != "b" {
		t.Fatalf("want b, got %q (%v)", got.ID, err)
	}
	for _, idx := range []int{0, 4, 99, -1} {
		if _, err := TaskAt(view, idx); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("index %d: want ErrTaskNotFound, got %v", idx, err)
		}
	}
}

func TestDueWithinDay_UsesLocalCalendar(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Almaty")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	now := time.Date(2025, 5, 5, 12, 0, 0, 0, loc)
	view := []Task{
		{ID: "late-today", DueAt: time.Date(2025, 5, 5, 23, 30, 0, 0, loc).UTC()},
		{ID: "tomorrow", DueAt: time.Date(2025, 5, 6, 0, 30, 0, 0, loc).UTC()},
	}
	got := DueWithinDay(view, now, loc)
	if len(got) != 1 || got[0].Task.ID != "late-today" || got[0].N != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestDueWithinDay_KeepsViewIndex(t *testing.T) {
	now := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	view := []Task{
		{ID: "overdue", DueAt: now.AddDate(0, 0, -1)},
		{ID: "today", DueAt: now.Add(time.Hour)},
	}
	got := DueWithinDay(view, now, time.UTC)
	if len(got) != 1 || got[0].N != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestUserDigestSentOn(t *testing.T) {
	u := &User{TZ: "Europe/Moscow"}
	now := time.Date(2025, 5, 5, 9, 0, 0, 0, u.Location())
	if u.DigestSentOn(now) {
		t.Fatal("nil LastDigestAt must not count as sent")
	}
	yesterday := now.Add(-10 * time.Hour).UTC()
	u.LastDigestAt = &yesterday
	if u.DigestSentOn(now) {
		t.Fatal("digest from yesterday counted as today")
	}
	earlier := now.Add(-time.Hour).UTC()
	u.LastDigestAt = &earlier
	if !u.DigestSentOn(now) {
		t.Fatal("digest from this morning not detected")
	}
}

func TestClassifyDue(t *testing.T) {
	now := refNow(t)
	loc := now.Location()
	cases := map[DueDay]time.Time{
		DueToday:     time.Date(2025, 5, 5, 23, 59, 0, 0, loc),
		DueTomorrow:  time.Date(2025, 5, 6, 0, 0, 0, 0, loc),
		DueThisYear:  time.Date(2025, 5, 4, 9, 0, 0, 0, loc),
		DueOtherYear: time.Date(2026, 5, 5, 9, 0, 0, 0, loc),
	}
	for want, due := range cases {
		if got := ClassifyDue(due.UTC(), now, loc); got != want {
			t.Errorf("%s: want %d, got %d", due, want, got)
		}
	}
}
