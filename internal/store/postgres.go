package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

// pgxConn is the subset of *pgxpool.Pool used by PgRepo.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PgRepo implements Repo on PostgreSQL.
type PgRepo struct {
	pool pgxConn
}

var _ Repo = (*PgRepo)(nil)

const pgTaskColumns = `t.id, t.user_id, t.title, t.due_at, t.status, t.pre_sent, t.due_sent, t.created_at, t.done_at`

// OpenPostgres connects to dsn, runs migrations and returns a repository.
func OpenPostgres(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}

	r := NewPgRepo(pool)
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// NewPgRepo wraps an existing pool.
func NewPgRepo(pool pgxConn) *PgRepo {
	return &PgRepo{pool: pool}
}

// Migrate applies the postgres migrations.
func (r *PgRepo) Migrate(ctx context.Context) error {
	err := RunMigrations(ctx, "postgres", func(ctx context.Context, _, stmt string) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	return errors.Wrap(err, "migrations")
}

func (r *PgRepo) Close() error {
	r.pool.Close()
	return nil
}

func (r *PgRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PgRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, chat_id, tz, lang, last_digest_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			lang    = EXCLUDED.lang`,
		u.ID, u.ChatID, u.TZ, u.Lang, u.LastDigestAt, created,
	)
	return errors.Wrap(err, "upsert user")
}

func (r *PgRepo) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, chat_id, tz, lang, last_digest_at, created_at
		FROM users WHERE user_id = $1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (r *PgRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, chat_id, tz, lang, last_digest_at, created_at
		FROM users ORDER BY user_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		res = append(res, u)
	}
	return res, errors.Wrap(rows.Err(), "list users")
}

func (r *PgRepo) SetTZ(ctx context.Context, userID int64, tz string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET tz = $1 WHERE user_id = $2`, tz, userID)
	return errors.Wrap(err, "set tz")
}

func (r *PgRepo) MarkDigestSent(ctx context.Context, userID int64, at, dayStart time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET last_digest_at = $1
		WHERE user_id = $2
		  AND (last_digest_at IS NULL OR last_digest_at < $3)`,
		at.UTC(), userID, dayStart.UTC())
	return tagAffected(tag, err, "mark digest")
}

func (r *PgRepo) CreateTasks(ctx context.Context, tasks []domain.Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tasks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, user_id, title, due_at, status, pre_sent, due_sent, created_at, done_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.UserID, t.Title, t.DueAt.UTC(), string(t.Status),
			t.PreReminderSent, t.DueReminderSent, t.CreatedAt.UTC(), t.DoneAt,
		); err != nil {
			return errors.Wrapf(err, "insert task %s", t.ID)
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (r *PgRepo) ListOpenTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pgTaskColumns+`
		FROM tasks t
		WHERE t.user_id = $1 AND t.status = 'open'
		ORDER BY t.due_at ASC, t.created_at ASC, t.id ASC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list open tasks")
	}
	defer rows.Close()

	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan task")
		}
		res = append(res, t)
	}
	return res, errors.Wrap(rows.Err(), "list open tasks")
}

func (r *PgRepo) ListPreReminders(ctx context.Context, now, until time.Time, after Cursor, limit int) ([]domain.ReminderTarget, error) {
	return r.listTargets(ctx, `
		SELECT `+pgTaskColumns+`, u.chat_id, u.tz, u.lang
		FROM tasks t
		JOIN users u ON u.user_id = t.user_id
		WHERE t.status = 'open'
		  AND NOT t.pre_sent
		  AND t.due_at > $1
		  AND t.due_at <= $2
		  AND (t.due_at, t.id) > ($3, $4)
		ORDER BY t.due_at ASC, t.id ASC
		LIMIT $5`, now.UTC(), until.UTC(), after.DueAt.UTC(), after.ID, limit)
}

func (r *PgRepo) ListDueReminders(ctx context.Context, now time.Time, after Cursor, limit int) ([]domain.ReminderTarget, error) {
	return r.listTargets(ctx, `
		SELECT `+pgTaskColumns+`, u.chat_id, u.tz, u.lang
		FROM tasks t
		JOIN users u ON u.user_id = t.user_id
		WHERE t.status = 'open'
		  AND NOT t.due_sent
		  AND t.due_at <= $1
		  AND (t.due_at, t.id) > ($2, $3)
		ORDER BY t.due_at ASC, t.id ASC
		LIMIT $4`, now.UTC(), after.DueAt.UTC(), after.ID, limit)
}

func (r *PgRepo) listTargets(ctx context.Context, query string, args ...any) ([]domain.ReminderTarget, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list reminder targets")
	}
	defer rows.Close()

	var res []domain.ReminderTarget
	for rows.Next() {
		var (
			tgt    domain.ReminderTarget
			status string
		)
		t := &tgt.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.DueAt, &status,
			&t.PreReminderSent, &t.DueReminderSent, &t.CreatedAt, &t.DoneAt,
			&tgt.ChatID, &tgt.TZ, &tgt.Lang); err != nil {
			return nil, errors.Wrap(err, "scan reminder target")
		}
		t.Status = domain.TaskStatus(status)
		normalizeTask(t)
		res = append(res, tgt)
	}
	return res, errors.Wrap(rows.Err(), "list reminder targets")
}

func (r *PgRepo) MarkReminderSent(ctx context.Context, taskID string, kind domain.ReminderKind, dueAt time.Time) (bool, error) {
	col, ok := reminderColumn(kind)
	if !ok {
		return false, errors.Errorf("unknown reminder kind %q", kind)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET `+col+` = TRUE
		WHERE id = $1 AND status = 'open' AND due_at = $2 AND NOT `+col,
		taskID, dueAt.UTC())
	return tagAffected(tag, err, "mark reminder")
}

func (r *PgRepo) CompleteTask(ctx context.Context, taskID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'done', done_at = $1
		WHERE id = $2 AND status = 'open'`,
		at.UTC(), taskID)
	return tagAffected(tag, err, "complete task")
}

func (r *PgRepo) RescheduleTask(ctx context.Context, taskID string, dueAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET due_at = $1, pre_sent = FALSE, due_sent = FALSE
		WHERE id = $2 AND status = 'open'`,
		dueAt.UTC(), taskID)
	return tagAffected(tag, err, "reschedule task")
}

func tagAffected(tag pgconn.CommandTag, err error, op string) (bool, error) {
	if err != nil {
		return false, errors.Wrap(err, op)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.ChatID, &u.TZ, &u.Lang, &u.LastDigestAt, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if u.LastDigestAt != nil {
		t := u.LastDigestAt.UTC()
		u.LastDigestAt = &t
	}
	return u, nil
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var (
		t      domain.Task
		status string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.DueAt, &status,
		&t.PreReminderSent, &t.DueReminderSent, &t.CreatedAt, &t.DoneAt); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskStatus(status)
	normalizeTask(&t)
	return t, nil
}

func normalizeTask(t *domain.Task) {
	t.DueAt = t.DueAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if t.DoneAt != nil {
		d := t.DoneAt.UTC()
		t.DoneAt = &d
	}
}
