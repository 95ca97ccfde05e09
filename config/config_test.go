package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "100, 200")
	t.Setenv("DATABASE_URL", "postgres://wg:wg@localhost/wg")
	t.Setenv("WG_SERVER_PUBLIC_KEY", "SRV")
	t.Setenv("WG_ENDPOINT", "vpn.example.com:51820")
	t.Setenv("ENGINE_API_URL", "http://127.0.0.1:9090")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxKeysPerUser != 3 {
		t.Errorf("MaxKeysPerUser = %d, want 3", cfg.MaxKeysPerUser)
	}
	if cfg.DefaultKeyTTLHours != 24 {
		t.Errorf("DefaultKeyTTLHours = %d, want 24", cfg.DefaultKeyTTLHours)
	}
	if cfg.SweepInterval != 10*time.Minute {
		t.Errorf("SweepInterval = %v, want 10m", cfg.SweepInterval)
	}
	if cfg.WGSubnetCIDR != "10.8.0.0/24" {
		t.Errorf("WGSubnetCIDR = %s", cfg.WGSubnetCIDR)
	}
	if cfg.BillingEnabled {
		t.Error("billing should default to disabled")
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[0] != 100 || cfg.AdminIDs[1] != 200 {
		t.Errorf("AdminIDs = %v", cfg.AdminIDs)
	}
	if !cfg.IsAdminID(200) || cfg.IsAdminID(300) {
		t.Error("IsAdminID mismatch")
	}
}

func TestLoadOverridesAndLists(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WG_DNS", "1.1.1.1, 9.9.9.9")
	t.Setenv("WG_ALLOWED_IPS", "0.0.0.0/0,::/0")
	t.Setenv("MAX_KEYS_PER_USER", "5")
	t.Setenv("BILLING_ENABLED", "true")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.WGDNS) != 2 || cfg.WGDNS[1] != "9.9.9.9" {
		t.Errorf("WGDNS = %v", cfg.WGDNS)
	}
	if len(cfg.WGAllowedIPs) != 2 {
		t.Errorf("WGAllowedIPs = %v", cfg.WGAllowedIPs)
	}
	if cfg.MaxKeysPerUser != 5 || !cfg.BillingEnabled {
		t.Error("overrides not applied")
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepInterval)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when BOT_TOKEN is empty")
	}
}

func TestLoadBadAdminIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_IDS", "100,abc")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed ADMIN_IDS")
	}
}
