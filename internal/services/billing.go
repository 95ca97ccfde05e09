package services

import (
	"WG-Access-Bot/config"
	"WG-Access-Bot/internal/db"
)

// BillingService keeps a per-user credit ledger. Charges run inside the
// caller's transaction so a failed charge leaves no credential behind and
// a rolled-back credential leaves no charge.
type BillingService struct {
	cfg *config.Config
}

func NewBillingService(cfg *config.Config) *BillingService {
	return &BillingService{cfg: cfg}
}

// Charge debits the user. No-op when billing is disabled.
func (b *BillingService) Charge(tx db.Store, user *db.User, amount int, description string) error {
	if !b.cfg.BillingEnabled || amount <= 0 {
		return nil
	}
	if user.Balance < amount {
		return ErrInsufficientFunds
	}
	if err := tx.AdjustBalance(user.ID, -amount); err != nil {
		return err
	}
	return tx.AddBillingEvent(&db.BillingEvent{
		UserID:      user.ID,
		Amount:      -amount,
		EventType:   "charge",
		Description: description,
	})
}

// Credit tops the user up. Works even with billing disabled so operators
// can pre-fund accounts.
func (b *BillingService) Credit(store db.Store, userID uint, amount int, description string) error {
	if amount <= 0 {
		return nil
	}
	if err := store.AdjustBalance(userID, amount); err != nil {
		return err
	}
	return store.AddBillingEvent(&db.BillingEvent{
		UserID:      userID,
		Amount:      amount,
		EventType:   "credit",
		Description: description,
	})
}
