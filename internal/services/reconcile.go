package services

import (
	"context"
	"fmt"
	"time"

	"WG-Access-Bot/internal/engine"
	"WG-Access-Bot/internal/logger"

	"go.uber.org/zap"
)

// ReconcileEngine brings the tunnel engine's live peer set in line with the
// persisted active credentials. Run once at startup and on operator demand.
// If the engine is unreachable the pass is skipped entirely and the system
// keeps serving from the store alone. Engine-side peers unknown to the
// store are reported as alerts, never deleted.
func (s *KeyService) ReconcileEngine(ctx context.Context) error {
	if !s.engine.IsReachable(ctx) {
		s.alerts.Emit("error", "tunnel engine unreachable, reconciliation skipped", nil)
		return engine.ErrUnreachable
	}

	active, err := s.store.ListActiveKeys(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("list active keys: %w", err)
	}

	restored := 0
	for i := range active {
		key := &active[i]
		if key.ClientAddress == nil {
			continue
		}
		state, err := s.engine.AddPeer(ctx, s.peerFor(key))
		if err != nil {
			logger.Error("reconcile: add peer failed", zap.String("key_id", key.ID), zap.Error(err))
			s.alerts.Emit("error", fmt.Sprintf("reconcile failed for key %s: %v", key.ID, err), &key.UserID)
			continue
		}
		if state == engine.PeerAdded {
			restored++
		}
	}

	known := make(map[string]struct{}, len(active))
	for i := range active {
		known[active[i].ID] = struct{}{}
	}
	peers, err := s.engine.ListPeers(ctx)
	if err != nil {
		logger.Warn("reconcile: could not list engine peers", zap.Error(err))
		s.alerts.Emit("warn", fmt.Sprintf("reconcile could not list engine peers: %v", err), nil)
	} else {
		for _, p := range peers {
			if _, ok := known[p.ID]; !ok {
				s.alerts.Emit("warn", fmt.Sprintf("engine peer %s has no active credential in the store", p.ID), nil)
			}
		}
	}

	logger.Info("engine reconciliation finished",
		zap.Int("active", len(active)), zap.Int("restored", restored))
	return nil
}
