package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User owns credentials. Created on first contact, never deleted.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	Username   string
	IsAdmin    bool
	Balance    int
	CreatedAt  time.Time
}

// Key is one issued WireGuard peer. The private key is never stored;
// only the public half and the assigned tunnel address are.
type Key struct {
	ID               string  `gorm:"primaryKey;size:36"`
	UserID           uint    `gorm:"index"`
	Name             string  `gorm:"size:120"`
	PublicKey        string  `gorm:"size:512"`
	ClientAddress    *string `gorm:"size:64"`
	PresharedKey     *string `gorm:"size:128"`
	CreatedAt        time.Time
	ExpiresAt        *time.Time `gorm:"index"` // nil = unlimited
	RevokedAt        *time.Time
	RotatedFromID    *string `gorm:"size:36"`
	NotifiedExpiring bool    `gorm:"default:false"`
}

func (k *Key) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

// IsActive reports whether the key is neither revoked nor past its expiry.
func (k *Key) IsActive(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// BillingEvent is an immutable ledger row. Negative amount = charge,
// positive = credit.
type BillingEvent struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"index"`
	Amount      int
	EventType   string `gorm:"size:64"`
	Description string
	CreatedAt   time.Time
}

// Alert is an append-only operator notice produced by automated paths.
type Alert struct {
	ID        uint `gorm:"primaryKey"`
	UserID    *uint
	Level     string `gorm:"size:32"`
	Message   string
	CreatedAt time.Time
}
