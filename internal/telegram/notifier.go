package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// Notifier sends plain text messages. It satisfies scheduler.Sender and
// conversation.Sender.
type Notifier struct {
	bot botAPI
	log *zap.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(bot botAPI, log *zap.Logger) *Notifier {
	return &Notifier{bot: bot, log: log}
}

// SendMessage sends text to the chat, splitting it on line boundaries when
// it exceeds the message size limit. The main menu keyboard is attached to
// the last part.
func (n *Notifier) SendMessage(chatID int64, text string) error {
	parts := splitMessage(text, maxMessageRunes)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 {
			msg.ReplyMarkup = mainMenuKeyboard()
		}
		if _, err := n.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks as cut points.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		res []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			res = append(res, strings.TrimRight(string(cur), "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		lr := []rune(line)
		if len(cur)+len(lr) > limit {
			flush()
		}
		for len(lr) > limit {
			res = append(res, string(lr[:limit]))
			lr = lr[limit:]
		}
		cur = append(cur, lr...)
	}
	flush()
	return res
}
