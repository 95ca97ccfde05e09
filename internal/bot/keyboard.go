package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func GetReplyKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	if isAdmin {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/newkey"),
				tgbotapi.NewKeyboardButton("/mykeys"),
				tgbotapi.NewKeyboardButton("/balance"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_stats"),
				tgbotapi.NewKeyboardButton("/admin_keys"),
				tgbotapi.NewKeyboardButton("/admin_alerts"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_reconcile"),
				tgbotapi.NewKeyboardButton("/admin_backup"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/newkey"),
			tgbotapi.NewKeyboardButton("/mykeys"),
			tgbotapi.NewKeyboardButton("/balance"),
		),
	)
}

// keyActionButtons builds the inline revoke/rotate row for one active key.
func keyActionButtons(keyID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Rotate", "rotate_"+keyID),
			tgbotapi.NewInlineKeyboardButtonData("Revoke", "revoke_"+keyID),
		),
	)
}
