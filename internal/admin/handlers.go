package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"WG-Access-Bot/config"
	"WG-Access-Bot/internal/db"
	"WG-Access-Bot/internal/logger"
	"WG-Access-Bot/internal/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Handler serves the operator commands. Visibility is enforced here: the
// bot layer only routes admin_ commands for configured admin ids.
type Handler struct {
	store db.Store
	keys  *services.KeyService
	cfg   *config.Config
}

func NewHandler(store db.Store, keys *services.KeyService, cfg *config.Config) *Handler {
	return &Handler{store: store, keys: keys, cfg: cfg}
}

// HandleCommand dispatches an admin command. Returns false for commands
// this handler does not own so the user handlers can take over.
func (h *Handler) HandleCommand(ctx context.Context, bot *tgbotapi.BotAPI, update *tgbotapi.Update) bool {
	if update.Message == nil || !h.cfg.IsAdminID(update.Message.From.ID) {
		return false
	}
	cmd := update.Message.Command()
	switch cmd {
	case "admin_stats":
		h.handleStats(ctx, bot, update)
	case "admin_keys":
		h.handleKeys(bot, update)
	case "admin_alerts":
		h.handleAlerts(bot, update)
	case "admin_credit":
		h.handleCredit(bot, update)
	case "admin_revoke":
		h.handleRevoke(ctx, bot, update)
	case "admin_reconcile":
		h.handleReconcile(ctx, bot, update)
	case "admin_backup":
		h.handleBackup(bot, update)
	default:
		return false
	}
	logger.LogAdminAction(update.Message.From.ID, cmd, update.Message.Text)
	return true
}

func (h *Handler) handleStats(ctx context.Context, bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	users, err := h.store.CountUsers()
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	active, err := h.store.CountAllActiveKeys(time.Now().UTC())
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	engineState := "unreachable"
	if h.keys.EngineReachable(ctx) {
		engineState = "ok"
	}
	h.reply(bot, update, fmt.Sprintf("Users: %d\nActive keys: %d\nEngine: %s", users, active, engineState))
}

func (h *Handler) handleKeys(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	keys, err := h.keys.ListAll()
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	if len(keys) == 0 {
		h.reply(bot, update, "No keys issued yet.")
		return
	}
	now := time.Now().UTC()
	var b strings.Builder
	limit := 30
	for i := range keys {
		if i >= limit {
			fmt.Fprintf(&b, "... and %d more\n", len(keys)-limit)
			break
		}
		key := &keys[i]
		status := "active"
		if !key.IsActive(now) {
			status = "inactive"
		}
		addr := "-"
		if key.ClientAddress != nil {
			addr = *key.ClientAddress
		}
		fmt.Fprintf(&b, "%s | user %d | %s | %s | %s\n", key.ID, key.UserID, key.Name, addr, status)
	}
	h.reply(bot, update, b.String())
}

func (h *Handler) handleAlerts(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	alerts, err := h.keys.Alerts().Latest(10)
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	if len(alerts) == 0 {
		h.reply(bot, update, "No alerts.")
		return
	}
	var b strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s %s\n", a.Level, a.CreatedAt.Format("01-02 15:04"), a.Message)
	}
	h.reply(bot, update, b.String())
}

// handleCredit tops a user's balance up: /admin_credit <telegram_id> <amount>
func (h *Handler) handleCredit(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	args := strings.Fields(update.Message.CommandArguments())
	if len(args) != 2 {
		h.reply(bot, update, "Usage: /admin_credit <telegram_id> <amount>")
		return
	}
	tgID, err1 := strconv.ParseInt(args[0], 10, 64)
	amount, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || amount <= 0 {
		h.reply(bot, update, "Usage: /admin_credit <telegram_id> <amount>")
		return
	}
	user, err := h.store.GetUserByTelegramID(tgID)
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	if user == nil {
		h.reply(bot, update, "No such user.")
		return
	}
	if err := h.keys.Billing().Credit(h.store, user.ID, amount, fmt.Sprintf("manual credit by admin %d", update.Message.From.ID)); err != nil {
		h.replyErr(bot, update, err)
		return
	}
	h.reply(bot, update, fmt.Sprintf("Credited %d to user %d.", amount, tgID))
}

// handleRevoke force-revokes any key by id: /admin_revoke <key_id>
func (h *Handler) handleRevoke(ctx context.Context, bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	keyID := strings.TrimSpace(update.Message.CommandArguments())
	if keyID == "" {
		h.reply(bot, update, "Usage: /admin_revoke <key_id>")
		return
	}
	revoked, err := h.keys.RevokeKey(ctx, keyID, nil)
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	if !revoked {
		h.reply(bot, update, "Key not found or already revoked.")
		return
	}
	h.reply(bot, update, "Key revoked.")
}

func (h *Handler) handleReconcile(ctx context.Context, bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	if err := h.keys.ReconcileEngine(ctx); err != nil {
		h.replyErr(bot, update, err)
		return
	}
	h.reply(bot, update, "Reconciliation finished, see /admin_alerts for findings.")
}

func (h *Handler) handleBackup(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	filename, err := BackupToDir("backups", h.cfg.DatabaseURL)
	if err != nil {
		h.replyErr(bot, update, err)
		return
	}
	h.reply(bot, update, "Backup written: "+filename)
}

func (h *Handler) reply(bot *tgbotapi.BotAPI, update *tgbotapi.Update, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text)); err != nil {
		logger.Error("admin reply failed", zap.Error(err))
	}
}

func (h *Handler) replyErr(bot *tgbotapi.BotAPI, update *tgbotapi.Update, err error) {
	logger.Error("admin command failed", zap.String("command", update.Message.Command()), zap.Error(err))
	h.reply(bot, update, "Failed: "+err.Error())
}
