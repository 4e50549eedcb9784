package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// mainMenuKeyboard builds the persistent reply keyboard with the view
// commands.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/today"),
			tgbotapi.NewKeyboardButton("/list"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/next"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
