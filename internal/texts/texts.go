// Package texts holds the user-facing message catalog.
package texts

import (
	"embed"
	"io/fs"
	"path"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

//go:embed locales/*.toml
var localesFS embed.FS

// Message ids.
const (
	Start            = "start"
	Help             = "help"
	CreatedOne       = "created_one"
	CreatedMany      = "created_many"
	ListHeader       = "list_header"
	ListEmpty        = "list_empty"
	TodayHeader      = "today_header"
	TodayEmpty       = "today_empty"
	TaskLine         = "task_line"
	NextTask         = "next_task"
	NextEmpty        = "next_empty"
	DoneOK           = "done_ok"
	SnoozeOK         = "snooze_ok"
	NotFound         = "not_found"
	NoTasksFound     = "no_tasks_found"
	ClarifyTime      = "clarify_time"
	UsageAdd         = "usage_add"
	UsageDone        = "usage_done"
	UsageSnooze      = "usage_snooze"
	UsageTZ          = "usage_tz"
	TZOK             = "tz_ok"
	ErrorGeneric     = "error_generic"
	TranscribeFailed = "transcribe_failed"
	ReminderPre      = "reminder_pre"
	ReminderDue      = "reminder_due"
	DigestHeader     = "digest_header"
	DigestEmpty      = "digest_empty"

	DueToday      = "due_today"
	DueTomorrow   = "due_tomorrow"
	DueDateLayout = "due_date_layout"
	DueYearLayout = "due_year_layout"
)

// Catalog localizes message ids. Unknown languages fall back to English.
type Catalog struct {
	bundle *i18n.Bundle
	log    *zap.Logger
}

// New loads the embedded locale files.
func New(log *zap.Logger) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := fs.ReadDir(localesFS, "locales")
	if err != nil {
		return nil, errors.Wrap(err, "read locales")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localesFS, path.Join("locales", e.Name())); err != nil {
			return nil, errors.Wrapf(err, "load %s", e.Name())
		}
	}
	return &Catalog{bundle: bundle, log: log}, nil
}

// T renders message id for lang. A missing translation is logged and the id
// itself is returned so the user still gets something.
func (c *Catalog) T(lang, id string, data map[string]any) string {
	l := i18n.NewLocalizer(c.bundle, lang, language.English.String())
	msg, err := l.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		c.log.Warn("translation not found", zap.String("lang", lang), zap.String("message_id", id), zap.Error(err))
		return id
	}
	return msg
}

// FormatDue renders a due instant in loc for chat output in lang.
func (c *Catalog) FormatDue(lang string, due, now time.Time, loc *time.Location) string {
	ld := due.In(loc)
	data := map[string]any{"Time": ld.Format("15:04")}
	switch domain.ClassifyDue(due, now, loc) {
	case domain.DueToday:
		return c.T(lang, DueToday, data)
	case domain.DueTomorrow:
		return c.T(lang, DueTomorrow, data)
	case domain.DueThisYear:
		return ld.Format(c.T(lang, DueDateLayout, nil))
	default:
		return ld.Format(c.T(lang, DueYearLayout, nil))
	}
}
