package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"WG-Access-Bot/config"
	"WG-Access-Bot/internal/admin"
	"WG-Access-Bot/internal/db"
	"WG-Access-Bot/internal/engine"
	"WG-Access-Bot/internal/logger"
	"WG-Access-Bot/internal/services"
	"WG-Access-Bot/internal/wireguard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Handler routes Telegram updates to the key lifecycle.
type Handler struct {
	api     *tgbotapi.BotAPI
	keys    *services.KeyService
	cfg     *config.Config
	limiter *RateLimiter
	admin   *admin.Handler
}

func NewHandler(api *tgbotapi.BotAPI, keys *services.KeyService, adminH *admin.Handler, cfg *config.Config) *Handler {
	return &Handler{
		api:     api,
		keys:    keys,
		cfg:     cfg,
		limiter: NewRateLimiter(),
		admin:   adminH,
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer logger.NotifyOnPanic("bot.HandleUpdate")

	if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	msg := update.Message
	user, err := h.keys.EnsureUser(msg.From.ID, msg.From.UserName)
	if err != nil {
		logger.Error("ensure user failed", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		h.reply(msg.Chat.ID, "Something went wrong, please try again.")
		return
	}

	if !msg.IsCommand() {
		return
	}
	cmd := msg.Command()

	if h.cfg.IsAdminID(msg.From.ID) {
		if h.admin.HandleCommand(ctx, h.api, &update) {
			return
		}
	} else if h.limiter.IsLimited(msg.From.ID, cmd) {
		h.reply(msg.Chat.ID, "Too many requests, give it a few seconds.")
		return
	}

	switch cmd {
	case "start", "help":
		h.handleStart(msg, user)
	case "newkey":
		h.handleNewKey(ctx, msg, user)
	case "mykeys":
		h.handleMyKeys(msg, user)
	case "balance":
		h.handleBalance(msg, user)
	}
}

func (h *Handler) handleStart(msg *tgbotapi.Message, user *db.User) {
	text := "This bot issues time-bounded WireGuard access.\n\n" +
		"/newkey [name] [ttl_hours] — issue a new key\n" +
		"/mykeys — list your keys\n" +
		"/balance — show your credit balance"
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyMarkup = GetReplyKeyboard(user.IsAdmin)
	h.send(out)
}

func (h *Handler) handleNewKey(ctx context.Context, msg *tgbotapi.Message, user *db.User) {
	name := "device"
	var ttlHours *int

	args := strings.Fields(msg.CommandArguments())
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		hours, err := strconv.Atoi(args[1])
		if err != nil {
			h.reply(msg.Chat.ID, "TTL must be a number of hours, e.g. /newkey laptop 72 (0 = unlimited).")
			return
		}
		ttlHours = &hours
	}

	res, err := h.keys.CreateKey(ctx, user.ID, name, ttlHours)
	if err != nil {
		h.reply(msg.Chat.ID, userFacingError(err))
		return
	}

	expiry := "unlimited"
	if res.Key.ExpiresAt != nil {
		expiry = res.Key.ExpiresAt.Format("2006-01-02 15:04 MST")
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Key %q issued, valid until: %s.\nThe config below is shown only once — save it now.", res.Key.Name, expiry))

	cfgMsg := tgbotapi.NewMessage(msg.Chat.ID, "```\n"+res.ConfigText+"```")
	cfgMsg.ParseMode = tgbotapi.ModeMarkdownV2
	h.send(cfgMsg)

	png, err := qrcode.Encode(res.ConfigText, qrcode.Medium, 512)
	if err != nil {
		logger.Error("qr encode failed", zap.String("key_id", res.Key.ID), zap.Error(err))
		return
	}
	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: res.Key.Name + ".png", Bytes: png})
	photo.Caption = "Scan in the WireGuard app"
	h.send(photo)
}

func (h *Handler) handleMyKeys(msg *tgbotapi.Message, user *db.User) {
	keys, err := h.keys.ListKeys(user.ID)
	if err != nil {
		logger.Error("list keys failed", zap.Uint("user_id", user.ID), zap.Error(err))
		h.reply(msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	if len(keys) == 0 {
		h.reply(msg.Chat.ID, "You have no keys yet. Issue one with /newkey.")
		return
	}

	now := time.Now().UTC()
	for i := range keys {
		key := &keys[i]
		out := tgbotapi.NewMessage(msg.Chat.ID, formatKey(key, now))
		if key.IsActive(now) {
			out.ReplyMarkup = keyActionButtons(key.ID)
		}
		h.send(out)
	}
}

func (h *Handler) handleBalance(msg *tgbotapi.Message, user *db.User) {
	if !h.cfg.BillingEnabled {
		h.reply(msg.Chat.ID, "Billing is disabled, keys are free here.")
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Balance: %d credits. One key costs %d.", user.Balance, h.cfg.KeyCostCredits))
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	user, err := h.keys.EnsureUser(cb.From.ID, cb.From.UserName)
	if err != nil {
		logger.Error("ensure user failed", zap.Int64("telegram_id", cb.From.ID), zap.Error(err))
		return
	}
	data := cb.Data

	switch {
	case strings.HasPrefix(data, "revoke_"):
		keyID := strings.TrimPrefix(data, "revoke_")
		revoked, err := h.keys.RevokeKey(ctx, keyID, &user.ID)
		if err != nil {
			logger.Error("revoke failed", zap.String("key_id", keyID), zap.Error(err))
			h.answer(cb, "Something went wrong.")
			return
		}
		if !revoked {
			h.answer(cb, "Key not found.")
			return
		}
		h.answer(cb, "Key revoked.")

	case strings.HasPrefix(data, "rotate_"):
		keyID := strings.TrimPrefix(data, "rotate_")
		res, err := h.keys.RotateKey(ctx, keyID, user.ID, nil)
		if err != nil {
			h.answer(cb, userFacingError(err))
			return
		}
		h.answer(cb, "Key rotated.")
		if cb.Message != nil {
			h.reply(cb.Message.Chat.ID, "New config (shown only once):")
			cfgMsg := tgbotapi.NewMessage(cb.Message.Chat.ID, "```\n"+res.ConfigText+"```")
			cfgMsg.ParseMode = tgbotapi.ModeMarkdownV2
			h.send(cfgMsg)
		}
	}
}

// userFacingError maps the recoverable lifecycle errors to plain answers.
// Anything unexpected is hidden behind a generic message.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, services.ErrQuotaExceeded):
		return "Device limit reached. Revoke an old key first."
	case errors.Is(err, wireguard.ErrPoolExhausted):
		return "No capacity right now, please try again later."
	case errors.Is(err, services.ErrInsufficientFunds):
		return "Not enough credits to issue a key."
	case errors.Is(err, wireguard.ErrKeygenUnavailable):
		return "Key generation is temporarily unavailable, please try again later."
	case errors.Is(err, services.ErrKeyNotFound):
		return "Key not found."
	case errors.Is(err, engine.ErrUnreachable):
		return "The VPN server is temporarily unavailable."
	}
	return "Something went wrong, please try again."
}

func formatKey(key *db.Key, now time.Time) string {
	status := "active"
	switch {
	case key.RevokedAt != nil:
		status = "revoked " + key.RevokedAt.Format("2006-01-02")
	case !key.IsActive(now):
		status = "expired"
	}
	expiry := "unlimited"
	if key.ExpiresAt != nil {
		expiry = key.ExpiresAt.Format("2006-01-02 15:04 MST")
	}
	addr := "-"
	if key.ClientAddress != nil {
		addr = *key.ClientAddress
	}
	return fmt.Sprintf("%s\nStatus: %s\nAddress: %s\nExpires: %s", key.Name, status, addr, expiry)
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		logger.Error("telegram send failed", zap.Error(err))
	}
}

func (h *Handler) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		logger.Error("callback answer failed", zap.Error(err))
	}
}
