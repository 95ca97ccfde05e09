package bot

import (
	"context"

	"WG-Access-Bot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start runs the polling loop until the context is cancelled.
func Start(ctx context.Context, botapi *tgbotapi.BotAPI, h *Handler) {
	logger.Info("bot authorized", zap.String("account", botapi.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botapi.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			botapi.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}
