package store

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for users, tasks and dispatch markers.
//
// The Mark*/Complete/Reschedule methods are conditional updates: they report
// false when the row was not in the expected state, so concurrent sweeps and
// commands never clobber each other's work.
type Repo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetTZ(ctx context.Context, userID int64, tz string) error
	// MarkDigestSent sets last_digest_at = at unless a digest was already
	// recorded at or after dayStart.
	MarkDigestSent(ctx context.Context, userID int64, at, dayStart time.Time) (bool, error)

	CreateTasks(ctx context.Context, tasks []domain.Task) error
	ListOpenTasks(ctx context.Context, userID int64) ([]domain.Task, error)
	// ListPreReminders returns open tasks with now < due_at <= until and the
	// pre flag unset, ordered by (due_at, id) and starting after the cursor.
	ListPreReminders(ctx context.Context, now, until time.Time, after Cursor, limit int) ([]domain.ReminderTarget, error)
	// ListDueReminders returns open tasks with due_at <= now and the due flag
	// unset, ordered by (due_at, id) and starting after the cursor.
	ListDueReminders(ctx context.Context, now time.Time, after Cursor, limit int) ([]domain.ReminderTarget, error)
	// MarkReminderSent sets the flag of kind if it is unset and the task is
	// still open with the given due instant.
	MarkReminderSent(ctx context.Context, taskID string, kind domain.ReminderKind, dueAt time.Time) (bool, error)
	// CompleteTask moves an open task to done.
	CompleteTask(ctx context.Context, taskID string, at time.Time) (bool, error)
	// RescheduleTask moves an open task to a new due instant and clears both
	// reminder flags.
	RescheduleTask(ctx context.Context, taskID string, dueAt time.Time) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// Cursor is the position of the last row of a reminder page. The zero value
// starts at the beginning.
type Cursor struct {
	DueAt time.Time
	ID    string
}

// After returns the cursor positioned on t.
func After(t domain.Task) Cursor {
	return Cursor{DueAt: t.DueAt, ID: t.ID}
}
