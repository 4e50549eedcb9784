package telegram

import (
	"context"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/conversation"
	"github.com/ykvlv/taskmate-bot/internal/texts"
)

// maxVoiceBytes is the Bot API download limit.
const maxVoiceBytes = 20 << 20

func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func inbound(msg *tgbotapi.Message, text string) conversation.Inbound {
	in := conversation.Inbound{ChatID: msg.Chat.ID, UserID: msg.Chat.ID, Text: text}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.Lang = msg.From.LanguageCode
	}
	return in
}

func (r *Router) handleText(ctx context.Context, msg *tgbotapi.Message, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.handler.HandleIncomingMessage(ctx, inbound(msg, text))
}

// handleVoice downloads the file, transcribes it and hands the text on as
// if the user had typed it. Any failure is reported with a fixed reply.
func (r *Router) handleVoice(ctx context.Context, msg *tgbotapi.Message, fileID string, size int, filename string) {
	in := inbound(msg, "")
	log := r.log.With(zap.Int64("user_id", in.UserID), zap.Int64("chat_id", in.ChatID))

	text, err := r.transcribe(ctx, fileID, size, filename)
	if err != nil {
		log.Warn("voice transcription failed", zap.Error(err))
		if sendErr := r.SendMessage(in.ChatID, r.texts.T(in.Lang, texts.TranscribeFailed, nil)); sendErr != nil {
			log.Error("send reply failed", zap.Error(sendErr))
		}
		return
	}
	log.Debug("voice transcribed", zap.Int("chars", len(text)))

	in.Text = text
	r.handler.HandleIncomingMessage(ctx, in)
}

func (r *Router) transcribe(ctx context.Context, fileID string, size int, filename string) (string, error) {
	if r.stt == nil {
		return "", errors.New("transcription is not configured")
	}
	if size > maxVoiceBytes {
		return "", errors.Errorf("voice too large: %d bytes", size)
	}
	audio, err := r.download(ctx, fileID)
	if err != nil {
		return "", err
	}
	return r.stt.Transcribe(ctx, audio, filename)
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, errors.Wrap(err, "get file url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("download file: status=%d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	if len(data) > maxVoiceBytes {
		return nil, errors.New("voice too large")
	}
	return data, nil
}
