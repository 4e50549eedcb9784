package telegram

import (
	"context"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/conversation"
	"github.com/ykvlv/taskmate-bot/internal/texts"
)

// botAPI is the subset of *tgbotapi.BotAPI used by this package.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// MessageHandler processes one inbound text message.
type MessageHandler interface {
	HandleIncomingMessage(ctx context.Context, in conversation.Inbound)
}

// Transcriber turns voice audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Router wires Telegram updates to the conversation handler. Each update is
// handled in its own goroutine.
type Router struct {
	*Notifier

	bot     botAPI
	log     *zap.Logger
	handler MessageHandler
	stt     Transcriber // nil disables voice input
	texts   *texts.Catalog
	http    *http.Client

	wg sync.WaitGroup
}

// NewRouter creates a new Telegram router. stt may be nil.
func NewRouter(bot botAPI, log *zap.Logger, handler MessageHandler, stt Transcriber, catalog *texts.Catalog) *Router {
	return &Router{
		Notifier: NewNotifier(bot, log),
		bot:      bot,
		log:      log,
		handler:  handler,
		stt:      stt,
		texts:    catalog,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Run polls for updates until ctx is canceled, then waits for in-flight
// updates to finish.
func (r *Router) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := r.bot.GetUpdatesChan(u)

	// In-flight turns finish even after shutdown starts.
	hctx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("telegram polling stopping")
			r.bot.StopReceivingUpdates()
			r.wg.Wait()
			return
		case upd, ok := <-updCh:
			if !ok {
				r.wg.Wait()
				return
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.HandleUpdate(hctx, upd)
			}()
		}
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("update handler panicked", zap.Any("panic", rec), zap.Int("update_id", upd.UpdateID))
		}
	}()

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		// Edits, callbacks and channel posts are not used.
		return
	}

	switch {
	case msg.Voice != nil:
		r.handleVoice(ctx, msg, msg.Voice.FileID, msg.Voice.FileSize, "voice.ogg")
	case msg.Audio != nil:
		name := msg.Audio.FileName
		if name == "" {
			name = "audio.mp3"
		}
		r.handleVoice(ctx, msg, msg.Audio.FileID, msg.Audio.FileSize, name)
	default:
		r.handleText(ctx, msg, messageText(msg))
	}
}
