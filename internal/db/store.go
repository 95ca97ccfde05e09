package db

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store is the persistence boundary for users, keys, billing events and
// alerts. Transaction yields a Store view bound to a single serializable
// transaction; the allocate-then-insert and count-then-insert sequences in
// the key lifecycle must run inside it.
type Store interface {
	GetOrCreateUser(telegramID int64, username string, initialBalance int) (*User, error)
	GetUserByID(id uint) (*User, error)
	GetUserByTelegramID(telegramID int64) (*User, error)
	MarkAdmins(telegramIDs []int64) error
	AdjustBalance(userID uint, delta int) error
	CountUsers() (int64, error)

	CreateKey(key *Key) error
	GetKey(id string, userID *uint) (*Key, error)
	ListKeysForUser(userID uint) ([]Key, error)
	ListAllKeys() ([]Key, error)
	ListActiveKeys(now time.Time) ([]Key, error)
	CountActiveKeys(userID uint, now time.Time) (int64, error)
	CountAllActiveKeys(now time.Time) (int64, error)
	ActiveAddresses(now time.Time) ([]string, error)
	RevokeKey(id string, userID *uint, now time.Time) (bool, error)
	ExpiredActiveKeys(now time.Time) ([]Key, error)
	ExpiringKeys(now, until time.Time) ([]Key, error)
	MarkNotified(id string) error

	AddBillingEvent(ev *BillingEvent) error
	AddAlert(a *Alert) error
	LatestAlerts(limit int) ([]Alert, error)

	Transaction(fn func(Store) error) error
}

// SQLStore implements Store on top of gorm/Postgres.
type SQLStore struct {
	db *gorm.DB
}

func NewStore(g *gorm.DB) *SQLStore {
	return &SQLStore{db: g}
}

const activeCond = "revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)"

func (s *SQLStore) GetOrCreateUser(telegramID int64, username string, initialBalance int) (*User, error) {
	var user User
	err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if err == nil {
		if username != "" && user.Username != username {
			if err := s.db.Model(&user).Update("username", username).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user = User{TelegramID: telegramID, Username: username, Balance: initialBalance}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) GetUserByID(id uint) (*User, error) {
	var user User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) GetUserByTelegramID(telegramID int64) (*User, error) {
	var user User
	err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkAdmins flags the configured operator accounts, creating rows for
// admins who have never talked to the bot.
func (s *SQLStore) MarkAdmins(telegramIDs []int64) error {
	for _, tgID := range telegramIDs {
		var user User
		err := s.db.Where("telegram_id = ?", tgID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.db.Create(&User{TelegramID: tgID, IsAdmin: true}).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			if err := s.db.Model(&user).Update("is_admin", true).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLStore) AdjustBalance(userID uint, delta int) error {
	return s.db.Model(&User{}).Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (s *SQLStore) CountUsers() (int64, error) {
	var count int64
	err := s.db.Model(&User{}).Count(&count).Error
	return count, err
}

func (s *SQLStore) CreateKey(key *Key) error {
	return s.db.Create(key).Error
}

func (s *SQLStore) GetKey(id string, userID *uint) (*Key, error) {
	q := s.db.Where("id = ?", id)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var key Key
	err := q.First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *SQLStore) ListKeysForUser(userID uint) ([]Key, error) {
	var keys []Key
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

func (s *SQLStore) ListAllKeys() ([]Key, error) {
	var keys []Key
	err := s.db.Order("created_at DESC").Find(&keys).Error
	return keys, err
}

func (s *SQLStore) ListActiveKeys(now time.Time) ([]Key, error) {
	var keys []Key
	err := s.db.Where(activeCond, now).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

func (s *SQLStore) CountActiveKeys(userID uint, now time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&Key{}).Where("user_id = ?", userID).Where(activeCond, now).Count(&count).Error
	return count, err
}

func (s *SQLStore) CountAllActiveKeys(now time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&Key{}).Where(activeCond, now).Count(&count).Error
	return count, err
}

// ActiveAddresses returns the tunnel addresses held by active keys.
// The shared pool occupancy is store-wide, not per user.
func (s *SQLStore) ActiveAddresses(now time.Time) ([]string, error) {
	var addrs []string
	err := s.db.Model(&Key{}).Where(activeCond, now).
		Where("client_address IS NOT NULL").
		Pluck("client_address", &addrs).Error
	return addrs, err
}

// RevokeKey stamps revoked_at on a not-yet-revoked key. Returns false when
// the key does not exist, belongs to someone else or is already revoked;
// callers deliberately cannot tell those apart.
func (s *SQLStore) RevokeKey(id string, userID *uint, now time.Time) (bool, error) {
	q := s.db.Model(&Key{}).Where("id = ? AND revoked_at IS NULL", id)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	res := q.Update("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) ExpiredActiveKeys(now time.Time) ([]Key, error) {
	var keys []Key
	err := s.db.Where("revoked_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?", now).
		Find(&keys).Error
	return keys, err
}

// ExpiringKeys returns active keys expiring in (now, until] whose owners
// have not been reminded yet.
func (s *SQLStore) ExpiringKeys(now, until time.Time) ([]Key, error) {
	var keys []Key
	err := s.db.Where("revoked_at IS NULL AND notified_expiring = false AND expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ?", now, until).
		Find(&keys).Error
	return keys, err
}

func (s *SQLStore) MarkNotified(id string) error {
	return s.db.Model(&Key{}).Where("id = ?", id).Update("notified_expiring", true).Error
}

func (s *SQLStore) AddBillingEvent(ev *BillingEvent) error {
	return s.db.Create(ev).Error
}

func (s *SQLStore) AddAlert(a *Alert) error {
	return s.db.Create(a).Error
}

func (s *SQLStore) LatestAlerts(limit int) ([]Alert, error) {
	var alerts []Alert
	err := s.db.Order("created_at DESC").Limit(limit).Find(&alerts).Error
	return alerts, err
}

func (s *SQLStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&SQLStore{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}
