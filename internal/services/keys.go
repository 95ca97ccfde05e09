package services

import (
	"context"
	"fmt"
	"time"

	"WG-Access-Bot/config"
	"WG-Access-Bot/internal/db"
	"WG-Access-Bot/internal/engine"
	"WG-Access-Bot/internal/logger"
	"WG-Access-Bot/internal/wireguard"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the narrow control-plane surface the lifecycle needs.
type Engine interface {
	AddPeer(ctx context.Context, peer engine.Peer) (engine.PeerState, error)
	RemovePeer(ctx context.Context, id string) (engine.PeerState, error)
	IsReachable(ctx context.Context) bool
	ListPeers(ctx context.Context) ([]engine.Peer, error)
}

// Issuer produces key material for new peers.
type Issuer interface {
	GenerateKeypair(ctx context.Context) (*wireguard.Keypair, error)
	GeneratePresharedKey(ctx context.Context) (string, error)
}

// KeyCreationResult carries the persisted key plus the one-time secrets.
// PrivateKey and ConfigText are shown to the user once and exist nowhere
// else afterwards.
type KeyCreationResult struct {
	Key        db.Key
	PrivateKey string
	ConfigText string
}

// KeyService implements the credential lifecycle: create, revoke, rotate,
// list and expiry cleanup. It holds no state beyond its collaborators and
// is safe to share across handlers.
type KeyService struct {
	store   db.Store
	issuer  Issuer
	engine  Engine
	cfg     *config.Config
	alerts  *AlertService
	billing *BillingService
}

func NewKeyService(store db.Store, issuer Issuer, eng Engine, cfg *config.Config) *KeyService {
	return &KeyService{
		store:   store,
		issuer:  issuer,
		engine:  eng,
		cfg:     cfg,
		alerts:  NewAlertService(store),
		billing: NewBillingService(cfg),
	}
}

// Alerts exposes the alert feed for the admin surface.
func (s *KeyService) Alerts() *AlertService { return s.alerts }

// Billing exposes the ledger for the admin surface.
func (s *KeyService) Billing() *BillingService { return s.billing }

// EngineReachable probes the tunnel engine health endpoint.
func (s *KeyService) EngineReachable(ctx context.Context) bool {
	return s.engine.IsReachable(ctx)
}

// EnsureUser returns the user for a Telegram account, creating it with the
// configured initial balance on first contact.
func (s *KeyService) EnsureUser(telegramID int64, username string) (*db.User, error) {
	return s.store.GetOrCreateUser(telegramID, username, s.cfg.InitialBalance)
}

// CreateKey issues a new credential for the user: quota check, address
// allocation, billing charge and row insert all commit atomically; the
// engine push afterwards is best-effort.
func (s *KeyService) CreateKey(ctx context.Context, userID uint, name string, ttlHours *int) (*KeyCreationResult, error) {
	return s.createKey(ctx, userID, name, ttlHours, nil)
}

// createKey is the shared create/rotate flow. When rotatedFrom is set the
// old key is revoked inside the same transaction, so a failed replacement
// rolls the revoke back and the user keeps the old key.
func (s *KeyService) createKey(ctx context.Context, userID uint, name string, ttlHours *int, rotatedFrom *string) (*KeyCreationResult, error) {
	// Key material comes from an external capability; generate it before
	// entering the transaction so the store never waits on a subprocess.
	pair, err := s.issuer.GenerateKeypair(ctx)
	if err != nil {
		return nil, err
	}
	psk := s.cfg.WGPresharedKey
	if psk == "" {
		if psk, err = s.issuer.GeneratePresharedKey(ctx); err != nil {
			return nil, err
		}
	}

	hours := s.cfg.DefaultKeyTTLHours
	if ttlHours != nil {
		hours = *ttlHours
	}
	var expiresAt *time.Time
	if hours > 0 {
		t := time.Now().UTC().Add(time.Duration(hours) * time.Hour)
		expiresAt = &t
	}

	key := db.Key{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		PublicKey:     pair.PublicKey,
		PresharedKey:  &psk,
		ExpiresAt:     expiresAt,
		RotatedFromID: rotatedFrom,
	}

	err = s.store.Transaction(func(tx db.Store) error {
		now := time.Now().UTC()
		user, err := tx.GetUserByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		if rotatedFrom != nil {
			revoked, err := tx.RevokeKey(*rotatedFrom, &userID, now)
			if err != nil {
				return err
			}
			if !revoked {
				return ErrKeyNotFound
			}
		}

		// Admins are exempt from the per-user quota.
		if !user.IsAdmin {
			count, err := tx.CountActiveKeys(userID, now)
			if err != nil {
				return err
			}
			if int(count) >= s.cfg.MaxKeysPerUser {
				return ErrQuotaExceeded
			}
		}

		occupied, err := tx.ActiveAddresses(now)
		if err != nil {
			return err
		}
		addr, err := wireguard.AllocateAddress(s.cfg.WGSubnetCIDR, occupied)
		if err != nil {
			return err
		}
		key.ClientAddress = &addr

		if err := s.billing.Charge(tx, user, s.cfg.KeyCostCredits, fmt.Sprintf("key %s (%s)", key.ID, name)); err != nil {
			return err
		}
		return tx.CreateKey(&key)
	})
	if err != nil {
		return nil, err
	}

	configText := wireguard.RenderClientConfig(pair.PrivateKey, *key.ClientAddress, s.peerSettings(), psk)

	// Engine state may lag the store; reconciliation closes the gap.
	if _, err := s.engine.AddPeer(ctx, s.peerFor(&key)); err != nil {
		logger.Error("engine push failed", zap.String("key_id", key.ID), zap.Error(err))
		s.alerts.Emit("error", fmt.Sprintf("engine push failed for key %s: %v", key.ID, err), &userID)
	}

	return &KeyCreationResult{Key: key, PrivateKey: pair.PrivateKey, ConfigText: configText}, nil
}

// RevokeKey stamps the key revoked. With a non-nil userID only the owner's
// keys match; a miss looks identical to a nonexistent key on purpose.
// Revoking an already-revoked key returns false without error.
func (s *KeyService) RevokeKey(ctx context.Context, keyID string, userID *uint) (bool, error) {
	revoked, err := s.store.RevokeKey(keyID, userID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if revoked || userID == nil {
		if _, err := s.engine.RemovePeer(ctx, keyID); err != nil {
			logger.Warn("engine removal failed", zap.String("key_id", keyID), zap.Error(err))
			s.alerts.Emit("warn", fmt.Sprintf("engine removal failed for key %s: %v", keyID, err), userID)
		}
	}
	if revoked {
		s.alerts.Emit("info", fmt.Sprintf("key %s revoked", keyID), userID)
	}
	return revoked, nil
}

// RotateKey replaces an active credential with a fresh one linked via
// rotated_from. Revoke-old and create-new commit in a single transaction:
// exactly one address is released and one claimed, and no intermediate
// zero-key state is observable.
func (s *KeyService) RotateKey(ctx context.Context, keyID string, userID uint, ttlHours *int) (*KeyCreationResult, error) {
	existing, err := s.store.GetKey(keyID, &userID)
	if err != nil {
		return nil, err
	}
	if existing == nil || !existing.IsActive(time.Now().UTC()) {
		return nil, ErrKeyNotFound
	}

	result, err := s.createKey(ctx, userID, existing.Name+"-rotated", ttlHours, &keyID)
	if err != nil {
		return nil, err
	}

	if _, err := s.engine.RemovePeer(ctx, keyID); err != nil {
		logger.Warn("engine removal of rotated key failed", zap.String("key_id", keyID), zap.Error(err))
		s.alerts.Emit("warn", fmt.Sprintf("engine removal failed for rotated key %s: %v", keyID, err), &userID)
	}
	return result, nil
}

// ListKeys returns the user's keys, newest first.
func (s *KeyService) ListKeys(userID uint) ([]db.Key, error) {
	return s.store.ListKeysForUser(userID)
}

// ListAll returns every key, newest first. Admin visibility is enforced by
// the caller.
func (s *KeyService) ListAll() ([]db.Key, error) {
	return s.store.ListAllKeys()
}

// CleanupExpired revokes every active key past its expiry and returns the
// count. Engine removals are attempted per key so one unreachable call
// does not stop the rest of the sweep.
func (s *KeyService) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.store.ExpiredActiveKeys(now)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		key := &expired[i]
		revoked, err := s.store.RevokeKey(key.ID, nil, now)
		if err != nil {
			logger.Error("failed to revoke expired key", zap.String("key_id", key.ID), zap.Error(err))
			s.alerts.Emit("error", fmt.Sprintf("sweep could not revoke expired key %s: %v", key.ID, err), &key.UserID)
			continue
		}
		if !revoked {
			continue
		}
		count++
		if _, err := s.engine.RemovePeer(ctx, key.ID); err != nil {
			logger.Warn("engine removal failed during sweep", zap.String("key_id", key.ID), zap.Error(err))
			s.alerts.Emit("warn", fmt.Sprintf("engine removal failed for expired key %s: %v", key.ID, err), &key.UserID)
		}
	}

	if count > 0 {
		s.alerts.Emit("warn", fmt.Sprintf("expiry sweep revoked %d keys", count), nil)
	}
	return count, nil
}

func (s *KeyService) peerSettings() wireguard.PeerSettings {
	return wireguard.PeerSettings{
		ServerPublicKey: s.cfg.WGServerPublicKey,
		Endpoint:        s.cfg.WGEndpoint,
		DNS:             s.cfg.WGDNS,
		AllowedIPs:      s.cfg.WGAllowedIPs,
	}
}

func (s *KeyService) peerFor(key *db.Key) engine.Peer {
	peer := engine.Peer{ID: key.ID, PublicKey: key.PublicKey}
	if key.PresharedKey != nil {
		peer.PresharedKey = *key.PresharedKey
	}
	if key.ClientAddress != nil {
		peer.AllowedIP = *key.ClientAddress
	}
	return peer
}
