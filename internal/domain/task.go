package domain

import (
	"errors"
	"sort"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// ReminderKind names one of the per-task notifications.
type ReminderKind string

const (
	ReminderPre ReminderKind = "pre"
	ReminderDue ReminderKind = "due"
)

var ErrTaskNotFound = errors.New("task not found")

// Task is a single to-do item with a concrete due instant.
type Task struct {
	ID              string
	UserID          int64
	Title           string
	DueAt           time.Time // UTC
	Status          TaskStatus
	PreReminderSent bool
	DueReminderSent bool
	CreatedAt       time.Time  // UTC
	DoneAt          *time.Time // UTC, nullable
}

// IsOpen reports whether reminders may still fire for the task.
func (t *Task) IsOpen() bool { return t.Status == TaskStatusOpen }

// ReminderTarget is a task joined with what the scheduler needs to notify
// its owner.
type ReminderTarget struct {
	Task   Task
	ChatID int64
	TZ     string
	Lang   string
}

// SortByDue orders tasks by due instant; ties fall back to creation time and id
// so the view is stable between calls.
func SortByDue(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.DueAt.Equal(b.DueAt) {
			return a.DueAt.Before(b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// OpenView returns the open tasks of the given slice in display order.
// The input is left untouched.
func OpenView(tasks []Task) []Task {
	view := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsOpen() {
			view = append(view, t)
		}
	}
	SortByDue(view)
	return view
}

// TaskAt resolves a 1-based index against a display view.
func TaskAt(view []Task, index int) (Task, error) {
	if index < 1 || index > len(view) {
		return Task{}, ErrTaskNotFound
	}
	return view[index-1], nil
}

// Numbered is a task together with its 1-based index in the open view.
type Numbered struct {
	N    int
	Task Task
}

// Number pairs every task of a view with its index.
func Number(view []Task) []Numbered {
	res := make([]Numbered, 0, len(view))
	for i, t := range view {
		res = append(res, Numbered{N: i + 1, Task: t})
	}
	return res
}

// DueWithinDay keeps the tasks of a view whose due instant falls on the same
// local day as now. Indexes refer to the full view, so "/done N" still works.
func DueWithinDay(view []Task, now time.Time, loc *time.Location) []Numbered {
	var res []Numbered
	for _, n := range Number(view) {
		if SameDay(n.Task.DueAt, now, loc) {
			res = append(res, n)
		}
	}
	return res
}
