package services

import (
	"fmt"
	"time"

	"WG-Access-Bot/internal/db"
	"WG-Access-Bot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// NotifyExpiringKeys messages owners whose keys expire within daysBefore
// days. Each key is reminded once, tracked by the notified_expiring flag.
func NotifyExpiringKeys(bot *tgbotapi.BotAPI, store db.Store, daysBefore int) {
	now := time.Now().UTC()
	until := now.Add(time.Duration(daysBefore) * 24 * time.Hour)
	keys, err := store.ExpiringKeys(now, until)
	if err != nil {
		logger.Error("failed to load expiring keys", zap.Error(err))
		return
	}

	for i := range keys {
		key := &keys[i]
		user, err := store.GetUserByID(key.UserID)
		if err != nil || user == nil {
			logger.NotifyAdmin(fmt.Sprintf("owner missing for expiring key %s", key.ID))
			continue
		}
		text := fmt.Sprintf("Your key %q expires on %s. Rotate it via /mykeys to keep access.",
			key.Name, key.ExpiresAt.Format("2006-01-02 15:04 MST"))
		if _, err := bot.Send(tgbotapi.NewMessage(user.TelegramID, text)); err != nil {
			logger.Error("failed to send expiry reminder",
				zap.Int64("telegram_id", user.TelegramID), zap.Error(err))
			continue
		}
		if err := store.MarkNotified(key.ID); err != nil {
			logger.Error("failed to mark key notified", zap.String("key_id", key.ID), zap.Error(err))
		}
	}
}
