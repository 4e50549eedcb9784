package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sqlx.DB }

var _ Repo = (*SQLiteRepo)(nil)

type userRow struct {
	UserID       int64         `db:"user_id"`
	ChatID       int64         `db:"chat_id"`
	TZ           string        `db:"tz"`
	Lang         string        `db:"lang"`
	LastDigestAt sql.NullInt64 `db:"last_digest_at"`
	CreatedAt    int64         `db:"created_at"`
}

type taskRow struct {
	ID        string        `db:"id"`
	UserID    int64         `db:"user_id"`
	Title     string        `db:"title"`
	DueAt     int64         `db:"due_at"`
	Status    string        `db:"status"`
	PreSent   int           `db:"pre_sent"`
	DueSent   int           `db:"due_sent"`
	CreatedAt int64         `db:"created_at"`
	DoneAt    sql.NullInt64 `db:"done_at"`
}

type targetRow struct {
	taskRow
	ChatID int64  `db:"chat_id"`
	TZ     string `db:"tz"`
	Lang   string `db:"lang"`
}

const (
	userColumns = `user_id, chat_id, tz, lang, last_digest_at, created_at`
	taskColumns = `t.id, t.user_id, t.title, t.due_at, t.status, t.pre_sent, t.due_sent, t.created_at, t.done_at`
)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply pragmas")
	}
	err = RunMigrations(ctx, "sqlite", func(ctx context.Context, _, stmt string) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrations")
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertUser inserts a user or refreshes chat id and language of an existing
// one. Timezone and digest marker of an existing row are left untouched.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, chat_id, tz, lang, last_digest_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			lang    = excluded.lang`,
		u.ID, u.ChatID, u.TZ, u.Lang, toNullInt64(u.LastDigestAt), created,
	)
	return errors.Wrap(err, "upsert user")
}

// GetUser returns a user by id or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	u := row.toDomain()
	return &u, nil
}

// ListUsers returns all users ordered by id.
func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY user_id`); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	res := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

// SetTZ updates the user's timezone.
func (r *SQLiteRepo) SetTZ(ctx context.Context, userID int64, tz string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET tz = ? WHERE user_id = ?`, tz, userID)
	return errors.Wrap(err, "set tz")
}

// MarkDigestSent records a digest unless one was already recorded today.
func (r *SQLiteRepo) MarkDigestSent(ctx context.Context, userID int64, at, dayStart time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_digest_at = ?
		WHERE user_id = ?
		  AND (last_digest_at IS NULL OR last_digest_at < ?)`,
		at.UTC().Unix(), userID, dayStart.UTC().Unix(),
	)
	return affected(res, err, "mark digest")
}

// CreateTasks inserts all tasks in one transaction.
func (r *SQLiteRepo) CreateTasks(ctx context.Context, tasks []domain.Task) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, user_id, title, due_at, status, pre_sent, due_sent, created_at, done_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, t.Title, t.DueAt.UTC().Unix(), string(t.Status),
			boolToInt(t.PreReminderSent), boolToInt(t.DueReminderSent),
			t.CreatedAt.UTC().Unix(), toNullInt64(t.DoneAt),
		); err != nil {
			return errors.Wrapf(err, "insert task %s", t.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// ListOpenTasks returns the user's open tasks ordered by due instant.
func (r *SQLiteRepo) ListOpenTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.user_id = ? AND t.status = 'open'
		ORDER BY t.due_at ASC, t.created_at ASC, t.id ASC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list open tasks")
	}
	res := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

// ListPreReminders returns tasks entering the pre-reminder window.
func (r *SQLiteRepo) ListPreReminders(ctx context.Context, now, until time.Time, after Cursor, limit int) ([]domain.ReminderTarget, error) {
	return r.listTargets(ctx, `
		SELECT `+taskColumns+`, u.chat_id, u.tz, u.lang
		FROM tasks t
		JOIN users u ON u.user_id = t.user_id
		WHERE t.status = 'open'
		  AND t.pre_sent = 0
		  AND t.due_at > ?
		  AND t.due_at <= ?
		  AND (t.due_at > ? OR (t.due_at = ? AND t.id > ?))
		ORDER BY t.due_at ASC, t.id ASC
		LIMIT ?`,
		now.UTC().Unix(), until.UTC().Unix(),
		after.DueAt.UTC().Unix(), after.DueAt.UTC().Unix(), after.ID, limit,
	)
}

// ListDueReminders returns tasks whose due instant has passed.
func (r *SQLiteRepo) ListDueReminders(ctx context.Context, now time.Time, after Cursor, limit int) ([]domain.ReminderTarget, error) {
	return r.listTargets(ctx, `
		SELECT `+taskColumns+`, u.chat_id, u.tz, u.lang
		FROM tasks t
		JOIN users u ON u.user_id = t.user_id
		WHERE t.status = 'open'
		  AND t.due_sent = 0
		  AND t.due_at <= ?
		  AND (t.due_at > ? OR (t.due_at = ? AND t.id > ?))
		ORDER BY t.due_at ASC, t.id ASC
		LIMIT ?`,
		now.UTC().Unix(),
		after.DueAt.UTC().Unix(), after.DueAt.UTC().Unix(), after.ID, limit,
	)
}

func (r *SQLiteRepo) listTargets(ctx context.Context, query string, args ...any) ([]domain.ReminderTarget, error) {
	var rows []targetRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "list reminder targets")
	}
	res := make([]domain.ReminderTarget, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.ReminderTarget{
			Task:   row.taskRow.toDomain(),
			ChatID: row.ChatID,
			TZ:     row.TZ,
			Lang:   row.Lang,
		})
	}
	return res, nil
}

// MarkReminderSent sets a reminder flag for an open task still due at dueAt.
func (r *SQLiteRepo) MarkReminderSent(ctx context.Context, taskID string, kind domain.ReminderKind, dueAt time.Time) (bool, error) {
	col, ok := reminderColumn(kind)
	if !ok {
		return false, errors.Errorf("unknown reminder kind %q", kind)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET `+col+` = 1
		WHERE id = ? AND status = 'open' AND due_at = ? AND `+col+` = 0`,
		taskID, dueAt.UTC().Unix(),
	)
	return affected(res, err, "mark reminder")
}

// CompleteTask marks an open task as done.
func (r *SQLiteRepo) CompleteTask(ctx context.Context, taskID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'done', done_at = ?
		WHERE id = ? AND status = 'open'`,
		at.UTC().Unix(), taskID,
	)
	return affected(res, err, "complete task")
}

// RescheduleTask moves an open task and re-arms both reminders.
func (r *SQLiteRepo) RescheduleTask(ctx context.Context, taskID string, dueAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET due_at = ?, pre_sent = 0, due_sent = 0
		WHERE id = ? AND status = 'open'`,
		dueAt.UTC().Unix(), taskID,
	)
	return affected(res, err, "reschedule task")
}

func affected(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, errors.Wrap(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, op)
	}
	return n > 0, nil
}

func (row userRow) toDomain() domain.User {
	return domain.User{
		ID:           row.UserID,
		ChatID:       row.ChatID,
		TZ:           row.TZ,
		Lang:         row.Lang,
		LastDigestAt: fromNullInt64(row.LastDigestAt),
		CreatedAt:    fromUnix(row.CreatedAt),
	}
}

func (row taskRow) toDomain() domain.Task {
	return domain.Task{
		ID:              row.ID,
		UserID:          row.UserID,
		Title:           row.Title,
		DueAt:           fromUnix(row.DueAt),
		Status:          domain.TaskStatus(row.Status),
		PreReminderSent: row.PreSent != 0,
		DueReminderSent: row.DueSent != 0,
		CreatedAt:       fromUnix(row.CreatedAt),
		DoneAt:          fromNullInt64(row.DoneAt),
	}
}
