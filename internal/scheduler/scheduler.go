package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/domain"
	"github.com/ykvlv/taskmate-bot/internal/store"
	"github.com/ykvlv/taskmate-bot/internal/texts"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Notifier implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Options tune the sweeps.
type Options struct {
	Interval   time.Duration // ticker period for Run
	PreWindow  time.Duration // how long before due the "soon" reminder fires
	DigestHour int           // local hour from which the daily digest may go out
	BatchSize  int           // page size of reminder queries
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Scheduler dispatches reminders and daily digests. Every dispatch is marked
// in the store after the message went out, so repeated or overlapping sweeps
// do not notify twice and a failed send is retried on the next sweep.
type Scheduler struct {
	repo   store.Repo
	log    *zap.Logger
	sender Sender
	texts  *texts.Catalog
	clk    clock.Clock
	opts   Options

	reminderMu sync.Mutex
	digestMu   sync.Mutex
}

// New creates a new Scheduler.
func New(repo store.Repo, log *zap.Logger, sender Sender, catalog *texts.Catalog, clk clock.Clock, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Scheduler{
		repo:   repo,
		log:    log,
		sender: sender,
		texts:  catalog,
		clk:    clk,
		opts:   opts,
	}
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one scheduling cycle.
func (s *Scheduler) tick(ctx context.Context) {
	if st, err := s.RunReminderSweep(ctx); err != nil {
		s.log.Error("reminder sweep failed", zap.Error(err))
	} else if st.Selected > 0 {
		s.log.Info("reminder sweep", zap.Any("stats", st))
	}
	if st, err := s.RunDigestSweep(ctx); err != nil {
		s.log.Error("digest sweep failed", zap.Error(err))
	} else if st.Selected > 0 {
		s.log.Info("digest sweep", zap.Any("stats", st))
	}
}

// RunReminderSweep sends "due now" reminders for tasks past due and "soon"
// reminders for tasks entering the pre-reminder window. Each task is handled
// independently; a failure only affects that task.
func (s *Scheduler) RunReminderSweep(ctx context.Context) (SweepStats, error) {
	var st SweepStats
	if !s.reminderMu.TryLock() {
		s.log.Debug("reminder sweep already running")
		return st, nil
	}
	defer s.reminderMu.Unlock()

	now := s.clk.Now().UTC()

	// Due first: a task already past due never gets a stale "soon".
	err := s.sweepPages(ctx, domain.ReminderDue, now, &st, func(after store.Cursor) ([]domain.ReminderTarget, error) {
		return s.repo.ListDueReminders(ctx, now, after, s.opts.BatchSize)
	})
	if err != nil {
		return st, err
	}
	err = s.sweepPages(ctx, domain.ReminderPre, now, &st, func(after store.Cursor) ([]domain.ReminderTarget, error) {
		return s.repo.ListPreReminders(ctx, now, now.Add(s.opts.PreWindow), after, s.opts.BatchSize)
	})
	return st, err
}

// sweepPages walks the whole backlog of one reminder kind page by page.
// Rows whose send failed stay behind the cursor, so they cannot starve the
// rest of the backlog.
func (s *Scheduler) sweepPages(ctx context.Context, kind domain.ReminderKind, now time.Time, st *SweepStats,
	list func(after store.Cursor) ([]domain.ReminderTarget, error)) error {
	var after store.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := list(after)
		if err != nil {
			return err
		}
		for _, tgt := range page {
			st.Selected++
			s.dispatchReminder(ctx, tgt, kind, now, st)
		}
		if len(page) < s.opts.BatchSize {
			return nil
		}
		after = store.After(page[len(page)-1].Task)
	}
}

func (s *Scheduler) dispatchReminder(ctx context.Context, tgt domain.ReminderTarget, kind domain.ReminderKind, now time.Time, st *SweepStats) {
	log := s.log.With(
		zap.String("task_id", tgt.Task.ID),
		zap.Int64("user_id", tgt.Task.UserID),
		zap.String("kind", string(kind)),
	)
	defer func() {
		if r := recover(); r != nil {
			st.Failed++
			log.Error("reminder dispatch panicked", zap.Any("panic", r))
		}
	}()

	loc := (&domain.User{TZ: tgt.TZ}).Location()
	data := map[string]any{
		"Title": tgt.Task.Title,
		"Due":   s.texts.FormatDue(tgt.Lang, tgt.Task.DueAt, now, loc),
	}
	id := texts.ReminderDue
	if kind == domain.ReminderPre {
		id = texts.ReminderPre
	}

	if err := s.sender.SendMessage(tgt.ChatID, s.texts.T(tgt.Lang, id, data)); err != nil {
		st.Failed++
		log.Error("send reminder failed", zap.Error(err), zap.Int64("chatID", tgt.ChatID))
		return
	}
	st.Sent++

	marked, err := s.repo.MarkReminderSent(ctx, tgt.Task.ID, kind, tgt.Task.DueAt)
	if err != nil {
		log.Error("mark reminder failed", zap.Error(err))
		return
	}
	if !marked {
		// Snoozed, completed or marked by a concurrent sweep in the meantime.
		log.Warn("reminder already settled")
	}
}

// RunDigestSweep sends each user one summary of today's open tasks per local
// calendar day, from DigestHour on. Users without tasks get an explicit
// "no tasks" message and their slot is consumed all the same.
func (s *Scheduler) RunDigestSweep(ctx context.Context) (SweepStats, error) {
	var st SweepStats
	if !s.digestMu.TryLock() {
		s.log.Debug("digest sweep already running")
		return st, nil
	}
	defer s.digestMu.Unlock()

	now := s.clk.Now()
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return st, err
	}
	for i := range users {
		u := &users[i]
		if u.DigestSentOn(now) || now.In(u.Location()).Hour() < s.opts.DigestHour {
			continue
		}
		st.Selected++
		s.dispatchDigest(ctx, u, now, &st)
	}
	return st, nil
}

func (s *Scheduler) dispatchDigest(ctx context.Context, u *domain.User, now time.Time, st *SweepStats) {
	log := s.log.With(zap.Int64("user_id", u.ID))
	defer func() {
		if r := recover(); r != nil {
			st.Failed++
			log.Error("digest dispatch panicked", zap.Any("panic", r))
		}
	}()

	open, err := s.repo.ListOpenTasks(ctx, u.ID)
	if err != nil {
		st.Failed++
		log.Error("list tasks for digest failed", zap.Error(err))
		return
	}
	loc := u.Location()
	today := domain.DueWithinDay(domain.OpenView(open), now, loc)

	if err := s.sender.SendMessage(u.ChatID, s.composeDigest(u, today, now)); err != nil {
		st.Failed++
		log.Error("send digest failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
		return
	}
	st.Sent++

	marked, err := s.repo.MarkDigestSent(ctx, u.ID, now.UTC(), domain.StartOfDay(now, loc))
	if err != nil {
		log.Error("mark digest failed", zap.Error(err))
		return
	}
	if !marked {
		st.Skipped++
		log.Warn("digest already recorded for today")
	}
}

func (s *Scheduler) composeDigest(u *domain.User, today []domain.Numbered, now time.Time) string {
	if len(today) == 0 {
		return s.texts.T(u.Lang, texts.DigestEmpty, nil)
	}
	var sb strings.Builder
	sb.WriteString(s.texts.T(u.Lang, texts.DigestHeader, nil))
	for _, n := range today {
		sb.WriteString("\n")
		sb.WriteString(s.texts.T(u.Lang, texts.TaskLine, map[string]any{
			"N":     n.N,
			"Title": n.Task.Title,
			"Due":   s.texts.FormatDue(u.Lang, n.Task.DueAt, now, u.Location()),
		}))
	}
	return sb.String()
}

// String is used in logs.
func (st SweepStats) String() string {
	return fmt.Sprintf("selected=%d sent=%d failed=%d skipped=%d", st.Selected, st.Sent, st.Failed, st.Skipped)
}
