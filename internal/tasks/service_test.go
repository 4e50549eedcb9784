package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"

	"github.com/ykvlv/taskmate-bot/internal/domain"
	"github.com/ykvlv/taskmate-bot/internal/store"
)

type fixture struct {
	svc  *Service
	repo *store.SQLiteRepo
	clk  clock.FakeClock
	user *domain.User
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	u := &domain.User{ID: 42, ChatID: 420, TZ: "Europe/Moscow"}
	require.NoError(t, repo.UpsertUser(ctx, u))

	clk := clock.NewFake()
	now := time.Date(2025, 5, 5, 10, 0, 0, 0, u.Location())
	clk.Set(now)

	return &fixture{svc: NewService(repo, clk), repo: repo, clk: clk, user: u, now: now}
}

// seedThree creates tasks due in 3h, 1h and 2h, in that insertion order.
func (f *fixture) seedThree(t *testing.T) []domain.Task {
	t.Helper()
	created, err := f.svc.CreateTasks(context.Background(), f.user, []domain.Candidate{
		{Title: "third", DueAt: f.now.Add(3 * time.Hour), Timed: true},
		{Title: "first", DueAt: f.now.Add(1 * time.Hour), Timed: true},
		{Title: "second", DueAt: f.now.Add(2 * time.Hour), Timed: true},
	})
	require.NoError(t, err)
	return created
}

func titles(tasks []domain.Task) []string {
	res := make([]string, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, t.Title)
	}
	return res
}

func TestCreateTasks_InputOrderAndDefaults(t *testing.T) {
	f := newFixture(t)
	created := f.seedThree(t)

	require.Equal(t, []string{"third", "first", "second"}, titles(created))
	for _, task := range created {
		require.NotEmpty(t, task.ID)
		require.Equal(t, domain.TaskStatusOpen, task.Status)
		require.False(t, task.PreReminderSent)
		require.False(t, task.DueReminderSent)
		require.Equal(t, f.user.ID, task.UserID)
	}
}

func TestListOpen_SortedByDue(t *testing.T) {
	f := newFixture(t)
	f.seedThree(t)

	view, err := f.svc.ListOpen(context.Background(), f.user)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, titles(view))

	next, err := f.svc.Next(context.Background(), f.user)
	require.NoError(t, err)
	require.Equal(t, "first", next.Title)
}

func TestListToday_FiltersByLocalDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateTasks(ctx, f.user, []domain.Candidate{
		{Title: "today", DueAt: f.now.Add(2 * time.Hour)},
		{Title: "tomorrow", DueAt: f.now.Add(20 * time.Hour)},
	})
	require.NoError(t, err)

	today, err := f.svc.ListToday(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.Equal(t, "today", today[0].Task.Title)
	require.Equal(t, 1, today[0].N)
}

func TestMarkDone_SecondSoonest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedThree(t)

	done, err := f.svc.MarkDone(ctx, f.user, 2)
	require.NoError(t, err)
	require.Equal(t, "second", done.Title)
	require.Equal(t, domain.TaskStatusDone, done.Status)

	view, err := f.svc.ListOpen(ctx, f.user)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "third"}, titles(view))
}

func TestMarkDone_OutOfRangeMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedThree(t)

	_, err := f.svc.MarkDone(ctx, f.user, 99)
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = f.svc.MarkDone(ctx, f.user, 0)
	require.ErrorIs(t, err, domain.ErrTaskNotFound)

	view, err := f.svc.ListOpen(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, view, 3)
}

func TestMarkDone_IndexReResolvedEachTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedThree(t)

	first, err := f.svc.MarkDone(ctx, f.user, 1)
	require.NoError(t, err)
	require.Equal(t, "first", first.Title)

	// The view shifted: index 1 is now "second".
	again, err := f.svc.MarkDone(ctx, f.user, 1)
	require.NoError(t, err)
	require.Equal(t, "second", again.Title)
}

func TestSnooze_ClearsFlagsAndMovesDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.seedThree(t)

	first := created[1]
	_, err := f.repo.MarkReminderSent(ctx, first.ID, domain.ReminderPre, first.DueAt.Truncate(time.Second))
	require.NoError(t, err)

	snoozed, err := f.svc.Snooze(ctx, f.user, 1, domain.SnoozeTarget{Delay: 90 * time.Minute})
	require.NoError(t, err)
	require.Equal(t, first.ID, snoozed.ID)
	require.True(t, snoozed.DueAt.Equal(f.now.Add(90*time.Minute)))
	require.False(t, snoozed.PreReminderSent)
	require.False(t, snoozed.DueReminderSent)

	view, err := f.svc.ListOpen(ctx, f.user)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, titles(view))
	require.False(t, view[0].PreReminderSent)
}

func TestSnooze_AbsoluteInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedThree(t)

	at := f.now.Add(48 * time.Hour)
	snoozed, err := f.svc.Snooze(ctx, f.user, 1, domain.SnoozeTarget{At: at})
	require.NoError(t, err)
	require.True(t, snoozed.DueAt.Equal(at))

	view, err := f.svc.ListOpen(ctx, f.user)
	require.NoError(t, err)
	require.Equal(t, "first", view[2].Title)
}

func TestSnooze_DoneTaskIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.seedThree(t)

	// With one task done only two remain open, so index 3 no longer resolves.
	_, err := f.repo.CompleteTask(ctx, created[1].ID, f.now)
	require.NoError(t, err)
	_, err = f.svc.Snooze(ctx, f.user, 3, domain.SnoozeTarget{Delay: time.Hour})
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}
