package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"WG-Access-Bot/config"
	"WG-Access-Bot/internal/admin"
	"WG-Access-Bot/internal/bot"
	"WG-Access-Bot/internal/db"
	"WG-Access-Bot/internal/engine"
	"WG-Access-Bot/internal/logger"
	"WG-Access-Bot/internal/services"
	"WG-Access-Bot/internal/wireguard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer logger.Sync()

	gdb, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	store := db.NewStore(gdb)
	if err := store.MarkAdmins(cfg.AdminIDs); err != nil {
		log.Fatalf("mark admins: %v", err)
	}

	botapi, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("create bot: %v", err)
	}
	logger.InitNotifier(botapi, cfg.AdminIDs[0])

	eng := engine.NewClient(cfg.EngineAPIURL, cfg.EngineAPIToken)
	keys := services.NewKeyService(store, &wireguard.Issuer{}, eng, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bring the engine's peer set in line with the store before serving.
	// Unreachable engine just means the pass is skipped and alerted.
	go func() {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := keys.ReconcileEngine(rctx); err != nil {
			logger.Error("startup reconciliation failed", zap.Error(err))
		}
	}()

	c := cron.New()
	sweeper := services.NewSweeper(keys)
	if _, err := sweeper.Schedule(c, cfg.SweepInterval); err != nil {
		log.Fatalf("schedule sweep: %v", err)
	}
	c.AddFunc("0 10 * * *", func() {
		services.NotifyExpiringKeys(botapi, store, cfg.ExpiryNoticeDays)
	})
	c.AddFunc("0 3 * * *", func() {
		admin.AutoBackupDatabase(botapi, cfg.AdminIDs[0], cfg.DatabaseURL)
	})
	c.Start()

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		logger.Info("health endpoint listening", zap.String("addr", cfg.HealthAddr))
		if err := http.ListenAndServe(cfg.HealthAddr, mux); err != nil {
			logger.Error("health endpoint stopped", zap.Error(err))
		}
	}()

	adminH := admin.NewHandler(store, keys, cfg)
	h := bot.NewHandler(botapi, keys, adminH, cfg)
	bot.Start(ctx, botapi, h)

	// Let an in-flight sweep tick finish before exiting.
	<-c.Stop().Done()
	logger.Info("shutdown complete")
}
