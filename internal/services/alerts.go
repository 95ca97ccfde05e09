package services

import (
	"WG-Access-Bot/internal/db"
	"WG-Access-Bot/internal/logger"

	"go.uber.org/zap"
)

// AlertService appends operator-facing notices. Automated paths (sweep,
// reconciliation) alert on failure; interactive user errors do not, to keep
// the feed from flooding.
type AlertService struct {
	store db.Store
}

func NewAlertService(store db.Store) *AlertService {
	return &AlertService{store: store}
}

// Emit writes one alert row and mirrors it to the log.
func (a *AlertService) Emit(level, message string, userID *uint) {
	if err := a.store.AddAlert(&db.Alert{Level: level, Message: message, UserID: userID}); err != nil {
		logger.Error("failed to persist alert", zap.String("message", message), zap.Error(err))
	}
	switch level {
	case "error":
		logger.Error(message)
		logger.NotifyAdmin(message)
	case "warn":
		logger.Warn(message)
	default:
		logger.Info(message)
	}
}

func (a *AlertService) Latest(limit int) ([]db.Alert, error) {
	return a.store.LatestAlerts(limit)
}
