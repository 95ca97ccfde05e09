package services

import (
	"context"
	"fmt"
	"time"

	"WG-Access-Bot/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically revokes keys past their expiry. A failed tick is
// logged and alerted, never propagated: the schedule must survive store
// and engine outages.
type Sweeper struct {
	keys *KeyService
}

func NewSweeper(keys *KeyService) *Sweeper {
	return &Sweeper{keys: keys}
}

// Run executes one sweep tick.
func (s *Sweeper) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sweep tick panicked", zap.Any("panic", r))
		}
	}()

	count, err := s.keys.CleanupExpired(ctx)
	if err != nil {
		logger.Error("sweep tick failed", zap.Error(err))
		s.keys.alerts.Emit("error", fmt.Sprintf("expiry sweep failed: %v", err), nil)
		return
	}
	if count > 0 {
		logger.Info("expiry sweep finished", zap.Int("revoked", count))
	}
}

// Schedule registers the sweep on the cron scheduler. Each tick gets its
// own bounded context so a stuck engine call cannot pile ticks up.
func (s *Sweeper) Schedule(c *cron.Cron, interval time.Duration) (cron.EntryID, error) {
	return c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		s.Run(ctx)
	})
}
