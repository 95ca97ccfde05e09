package logger

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var (
	botInstance *tgbotapi.BotAPI
	adminID     int64
	once        sync.Once
)

// InitNotifier wires critical notifications to the operator's Telegram chat.
func InitNotifier(bot *tgbotapi.BotAPI, admin int64) {
	once.Do(func() {
		botInstance = bot
		adminID = admin
	})
}

// NotifyAdmin sends a critical notice to the operator. No-op until InitNotifier.
func NotifyAdmin(msg string) {
	if botInstance == nil || adminID == 0 {
		return
	}
	botInstance.Send(tgbotapi.NewMessage(adminID, "[ALERT] "+msg))
}

// NotifyOnPanic recovers a panic, logs it and pings the operator.
func NotifyOnPanic(context string) {
	if r := recover(); r != nil {
		Error("panic recovered", zap.String("context", context), zap.Any("panic", r))
		NotifyAdmin(fmt.Sprintf("Panic in %s: %v", context, r))
	}
}
