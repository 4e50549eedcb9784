package store

import (
	"database/sql"
	"time"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

func toNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullInt64(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// reminderColumn maps a reminder kind to its flag column. Only these two
// literals ever reach SQL text.
func reminderColumn(kind domain.ReminderKind) (string, bool) {
	switch kind {
	case domain.ReminderPre:
		return "pre_sent", true
	case domain.ReminderDue:
		return "due_sent", true
	default:
		return "", false
	}
}
