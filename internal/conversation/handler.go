// Package conversation turns one inbound chat message into task operations
// and replies.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/domain"
	"github.com/ykvlv/taskmate-bot/internal/store"
	"github.com/ykvlv/taskmate-bot/internal/tasks"
	"github.com/ykvlv/taskmate-bot/internal/texts"
)

// Pending state keys used in multi-message flows.
const (
	pendingTZ = "await_tz_text"
)

// Sender delivers a reply to a chat.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Inbound is one message from a user, already transcribed if it was voice.
type Inbound struct {
	UserID int64
	ChatID int64
	Text   string
	Lang   string
}

// Options configure the handler.
type Options struct {
	DefaultTZ string
	Policy    domain.MissingTimePolicy
}

// Handler routes inbound messages to the task service.
type Handler struct {
	repo   store.Repo
	svc    *tasks.Service
	sender Sender
	texts  *texts.Catalog
	clk    clock.Clock
	log    *zap.Logger
	audit  *zap.Logger
	opts   Options

	state map[int64]string // userID -> pending state
	mu    sync.RWMutex
}

// NewHandler creates a Handler.
func NewHandler(repo store.Repo, svc *tasks.Service, sender Sender, catalog *texts.Catalog, clk clock.Clock, log *zap.Logger, opts Options) *Handler {
	if opts.DefaultTZ == "" {
		opts.DefaultTZ = "UTC"
	}
	if !opts.Policy.Valid() {
		opts.Policy = domain.PolicyEndOfDay
	}
	return &Handler{
		repo:   repo,
		svc:    svc,
		sender: sender,
		texts:  catalog,
		clk:    clk,
		log:    log,
		audit:  log.Named("audit"),
		opts:   opts,
		state:  make(map[int64]string),
	}
}

// HandleIncomingMessage processes one message turn. It never returns an
// error: every outcome, including internal failures, becomes a reply.
func (h *Handler) HandleIncomingMessage(ctx context.Context, in Inbound) {
	log := h.log.With(zap.Int64("user_id", in.UserID), zap.Int64("chat_id", in.ChatID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("message turn panicked", zap.Any("panic", r))
			h.reply(in.ChatID, h.texts.T(in.Lang, texts.ErrorGeneric, nil))
		}
	}()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return
	}

	u, err := h.EnsureUser(ctx, in)
	if err != nil {
		log.Error("ensureUser failed", zap.Error(err))
		h.reply(in.ChatID, h.texts.T(in.Lang, texts.ErrorGeneric, nil))
		return
	}

	intent := domain.ParseIntent(text)
	if intent.Kind == domain.IntentNone && h.consumePending(ctx, u, text) {
		return
	}
	h.clearPending(u.ID)

	switch intent.Kind {
	case domain.IntentStart:
		h.send(u, texts.Start, nil)
	case domain.IntentHelp:
		h.send(u, texts.Help, nil)
	case domain.IntentAdd:
		if intent.Payload == "" {
			h.send(u, texts.UsageAdd, nil)
			return
		}
		h.handleCreate(ctx, u, intent.Payload)
	case domain.IntentNext:
		h.handleNext(ctx, u)
	case domain.IntentToday:
		h.handleToday(ctx, u)
	case domain.IntentList:
		h.handleList(ctx, u)
	case domain.IntentDone:
		h.handleDone(ctx, u, intent)
	case domain.IntentSnooze:
		h.handleSnooze(ctx, u, intent)
	case domain.IntentTZ:
		h.handleTZ(ctx, u, intent)
	default:
		h.handleCreate(ctx, u, intent.Payload)
	}
}

// EnsureUser returns the stored user, creating it with the default timezone
// on first contact. Chat id and language are refreshed when they change.
func (h *Handler) EnsureUser(ctx context.Context, in Inbound) (*domain.User, error) {
	u, err := h.repo.GetUser(ctx, in.UserID)
	switch {
	case err == nil:
		if u.ChatID == in.ChatID && (in.Lang == "" || u.Lang == in.Lang) {
			return u, nil
		}
		u.ChatID = in.ChatID
		if in.Lang != "" {
			u.Lang = in.Lang
		}
	case errors.Is(err, store.ErrNotFound):
		u = &domain.User{
			ID:        in.UserID,
			ChatID:    in.ChatID,
			TZ:        h.opts.DefaultTZ,
			Lang:      in.Lang,
			CreatedAt: h.clk.Now().UTC(),
		}
	default:
		return nil, err
	}
	if err := h.repo.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// --- Task creation ---

func (h *Handler) handleCreate(ctx context.Context, u *domain.User, text string) {
	now := h.now(u)
	cands := domain.ExtractTasks(text, now)
	if len(cands) == 0 {
		h.send(u, texts.NoTasksFound, nil)
		return
	}
	if h.opts.Policy == domain.PolicyClarify {
		for _, c := range cands {
			if !c.Timed {
				h.send(u, texts.ClarifyTime, map[string]any{"Title": c.Title})
				return
			}
		}
	}

	created, err := h.svc.CreateTasks(ctx, u, cands)
	if err != nil {
		h.fail(u, "create tasks failed", err)
		return
	}
	for _, t := range created {
		h.auditTask("create", t)
	}

	if len(created) == 1 {
		h.send(u, texts.CreatedOne, map[string]any{
			"Title": created[0].Title,
			"Due":   h.texts.FormatDue(u.Lang, created[0].DueAt, now, u.Location()),
		})
		return
	}

	// Number the new tasks as /list would show them.
	pos := make(map[string]int, len(created))
	if view, err := h.svc.ListOpen(ctx, u); err == nil {
		for _, n := range domain.Number(view) {
			pos[n.Task.ID] = n.N
		}
	}
	lines := make([]domain.Numbered, 0, len(created))
	for i, t := range created {
		n, ok := pos[t.ID]
		if !ok {
			n = i + 1
		}
		lines = append(lines, domain.Numbered{N: n, Task: t})
	}
	h.sendList(u, h.texts.T(u.Lang, texts.CreatedMany, map[string]any{"Count": len(created)}), lines, now)
}

// --- Views ---

func (h *Handler) handleNext(ctx context.Context, u *domain.User) {
	t, err := h.svc.Next(ctx, u)
	if errors.Is(err, domain.ErrTaskNotFound) {
		h.send(u, texts.NextEmpty, nil)
		return
	}
	if err != nil {
		h.fail(u, "next task failed", err)
		return
	}
	h.send(u, texts.NextTask, map[string]any{
		"Title": t.Title,
		"Due":   h.texts.FormatDue(u.Lang, t.DueAt, h.now(u), u.Location()),
	})
}

func (h *Handler) handleToday(ctx context.Context, u *domain.User) {
	today, err := h.svc.ListToday(ctx, u)
	if err != nil {
		h.fail(u, "list today failed", err)
		return
	}
	if len(today) == 0 {
		h.send(u, texts.TodayEmpty, nil)
		return
	}
	h.sendList(u, h.texts.T(u.Lang, texts.TodayHeader, nil), today, h.now(u))
}

func (h *Handler) handleList(ctx context.Context, u *domain.User) {
	view, err := h.svc.ListOpen(ctx, u)
	if err != nil {
		h.fail(u, "list open failed", err)
		return
	}
	if len(view) == 0 {
		h.send(u, texts.ListEmpty, nil)
		return
	}
	h.sendList(u, h.texts.T(u.Lang, texts.ListHeader, nil), domain.Number(view), h.now(u))
}

// --- Index commands ---

func (h *Handler) handleDone(ctx context.Context, u *domain.User, in domain.Intent) {
	index := in.Index
	if in.Explicit {
		if len(in.Args) < 1 {
			h.send(u, texts.UsageDone, nil)
			return
		}
		n, err := domain.ParseIndex(in.Args[0])
		if err != nil {
			h.send(u, texts.UsageDone, nil)
			return
		}
		index = n
	}

	t, err := h.svc.MarkDone(ctx, u, index)
	if errors.Is(err, domain.ErrTaskNotFound) {
		h.send(u, texts.NotFound, nil)
		return
	}
	if err != nil {
		h.fail(u, "mark done failed", err)
		return
	}
	h.auditTask("done", t)
	h.send(u, texts.DoneOK, map[string]any{"Title": t.Title})
}

func (h *Handler) handleSnooze(ctx context.Context, u *domain.User, in domain.Intent) {
	if len(in.Args) < 2 {
		h.send(u, texts.UsageSnooze, nil)
		return
	}
	index, err := domain.ParseIndex(in.Args[0])
	if err != nil {
		h.send(u, texts.UsageSnooze, nil)
		return
	}
	now := h.now(u)
	target, err := domain.ParseSnoozeTarget(strings.Join(in.Args[1:], " "), now)
	if err != nil {
		h.send(u, texts.UsageSnooze, nil)
		return
	}

	t, err := h.svc.Snooze(ctx, u, index, target)
	if errors.Is(err, domain.ErrTaskNotFound) {
		h.send(u, texts.NotFound, nil)
		return
	}
	if err != nil {
		h.fail(u, "snooze failed", err)
		return
	}
	h.auditTask("snooze", t)
	h.send(u, texts.SnoozeOK, map[string]any{
		"Title": t.Title,
		"Due":   h.texts.FormatDue(u.Lang, t.DueAt, now, u.Location()),
	})
}

// --- Timezone flow ---

func (h *Handler) handleTZ(ctx context.Context, u *domain.User, in domain.Intent) {
	if len(in.Args) == 0 {
		h.send(u, texts.UsageTZ, nil)
		h.setPending(u.ID, pendingTZ)
		return
	}
	if !h.updateTZ(ctx, u, in.Args[0]) {
		h.send(u, texts.UsageTZ, nil)
	}
}

// updateTZ validates and stores tz, replying on success.
func (h *Handler) updateTZ(ctx context.Context, u *domain.User, raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "local") {
		return false
	}
	tz, err := domain.ValidateTZ(raw)
	if err != nil {
		return false
	}
	if err := h.repo.SetTZ(ctx, u.ID, tz); err != nil {
		h.fail(u, "updateTZ failed", err)
		return true
	}
	u.TZ = tz
	h.audit.Info("timezone updated", zap.Int64("user_id", u.ID), zap.String("action", "tz"), zap.String("tz", tz))
	h.send(u, texts.TZOK, map[string]any{"TZ": tz})
	return true
}

// consumePending finishes a flow started by a previous message. It reports
// whether text was used up; otherwise the text is handled as usual. A reply
// to a pending flow is never turned into a task.
func (h *Handler) consumePending(ctx context.Context, u *domain.User, text string) bool {
	switch h.getPending(u.ID) {
	case pendingTZ:
		h.clearPending(u.ID)
		if !h.updateTZ(ctx, u, text) {
			h.send(u, texts.UsageTZ, nil)
		}
		return true
	default:
		return false
	}
}

// --- Helpers ---

func (h *Handler) now(u *domain.User) time.Time {
	return h.clk.Now().In(u.Location())
}

func (h *Handler) send(u *domain.User, id string, data map[string]any) {
	h.reply(u.ChatID, h.texts.T(u.Lang, id, data))
}

func (h *Handler) sendList(u *domain.User, header string, items []domain.Numbered, now time.Time) {
	var sb strings.Builder
	sb.WriteString(header)
	for _, n := range items {
		sb.WriteString("\n")
		sb.WriteString(h.texts.T(u.Lang, texts.TaskLine, map[string]any{
			"N":     n.N,
			"Title": n.Task.Title,
			"Due":   h.texts.FormatDue(u.Lang, n.Task.DueAt, now, u.Location()),
		}))
	}
	h.reply(u.ChatID, sb.String())
}

func (h *Handler) reply(chatID int64, text string) {
	if err := h.sender.SendMessage(chatID, text); err != nil {
		h.log.Error("send reply failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *Handler) fail(u *domain.User, msg string, err error) {
	h.log.Error(msg, zap.Error(err), zap.Int64("user_id", u.ID))
	h.send(u, texts.ErrorGeneric, nil)
}

func (h *Handler) auditTask(action string, t domain.Task) {
	h.audit.Info("task "+action,
		zap.String("task_id", t.ID),
		zap.Int64("user_id", t.UserID),
		zap.String("action", action),
		zap.Time("due_at", t.DueAt),
	)
}

// --- Pending state ---

func (h *Handler) setPending(userID int64, key string) {
	h.mu.Lock()
	h.state[userID] = key
	h.mu.Unlock()
}

func (h *Handler) getPending(userID int64) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state[userID]
}

func (h *Handler) clearPending(userID int64) {
	h.mu.Lock()
	delete(h.state, userID)
	h.mu.Unlock()
}
