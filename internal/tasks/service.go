// Package tasks applies create/list/done/snooze operations to stored tasks.
// It never talks to the user; callers turn the returned records into replies.
package tasks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"

	"github.com/ykvlv/taskmate-bot/internal/domain"
	"github.com/ykvlv/taskmate-bot/internal/store"
)

// Service is the task lifecycle manager.
type Service struct {
	repo store.Repo
	clk  clock.Clock
}

// NewService creates a Service.
func NewService(repo store.Repo, clk clock.Clock) *Service {
	return &Service{repo: repo, clk: clk}
}

// CreateTasks persists one open task per candidate and returns them in input
// order.
func (s *Service) CreateTasks(ctx context.Context, u *domain.User, cands []domain.Candidate) ([]domain.Task, error) {
	if len(cands) == 0 {
		return nil, nil
	}
	now := s.clk.Now().UTC()
	out := make([]domain.Task, 0, len(cands))
	for _, c := range cands {
		if c.Title == "" {
			return nil, errors.New("empty task title")
		}
		id, err := uuid.NewV7()
		if err != nil {
			return nil, errors.Wrap(err, "task id")
		}
		out = append(out, domain.Task{
			ID:        id.String(),
			UserID:    u.ID,
			Title:     c.Title,
			DueAt:     c.DueAt.UTC(),
			Status:    domain.TaskStatusOpen,
			CreatedAt: now,
		})
	}
	if err := s.repo.CreateTasks(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOpen returns the user's open tasks in display order.
func (s *Service) ListOpen(ctx context.Context, u *domain.User) ([]domain.Task, error) {
	tasks, err := s.repo.ListOpenTasks(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return domain.OpenView(tasks), nil
}

// ListToday returns open tasks due within the user's local calendar day,
// numbered by their position in the full open view.
func (s *Service) ListToday(ctx context.Context, u *domain.User) ([]domain.Numbered, error) {
	view, err := s.ListOpen(ctx, u)
	if err != nil {
		return nil, err
	}
	return domain.DueWithinDay(view, s.clk.Now(), u.Location()), nil
}

// Next returns the open task due soonest.
func (s *Service) Next(ctx context.Context, u *domain.User) (domain.Task, error) {
	view, err := s.ListOpen(ctx, u)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.TaskAt(view, 1)
}

// MarkDone resolves index against the live open-task view and completes that
// task. An index outside the view, or a task completed concurrently, yields
// domain.ErrTaskNotFound and nothing is changed.
func (s *Service) MarkDone(ctx context.Context, u *domain.User, index int) (domain.Task, error) {
	t, err := s.resolve(ctx, u, index)
	if err != nil {
		return domain.Task{}, err
	}
	now := s.clk.Now().UTC()
	ok, err := s.repo.CompleteTask(ctx, t.ID, now)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	t.Status = domain.TaskStatusDone
	t.DoneAt = &now
	return t, nil
}

// Snooze moves the indexed task to a new due instant and re-arms both
// reminders. Done tasks are not found.
func (s *Service) Snooze(ctx context.Context, u *domain.User, index int, target domain.SnoozeTarget) (domain.Task, error) {
	t, err := s.resolve(ctx, u, index)
	if err != nil {
		return domain.Task{}, err
	}
	due := target.Resolve(s.clk.Now()).UTC()
	ok, err := s.repo.RescheduleTask(ctx, t.ID, due)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	t.DueAt = due
	t.PreReminderSent = false
	t.DueReminderSent = false
	return t, nil
}

func (s *Service) resolve(ctx context.Context, u *domain.User, index int) (domain.Task, error) {
	view, err := s.ListOpen(ctx, u)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.TaskAt(view, index)
}
