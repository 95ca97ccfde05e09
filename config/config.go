package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the immutable startup configuration.
type Config struct {
	BotToken    string
	AdminIDs    []int64
	DatabaseURL string

	WGSubnetCIDR      string
	WGServerPublicKey string
	WGEndpoint        string
	WGDNS             []string
	WGAllowedIPs      []string
	WGPresharedKey    string // fixed PSK; empty = generate one per key

	EngineAPIURL   string
	EngineAPIToken string

	MaxKeysPerUser     int
	DefaultKeyTTLHours int // <= 0 means unlimited
	BillingEnabled     bool
	KeyCostCredits     int
	InitialBalance     int

	SweepInterval    time.Duration
	ExpiryNoticeDays int
	HealthAddr       string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("WG_SUBNET_CIDR", "10.8.0.0/24")
	v.SetDefault("WG_DNS", "1.1.1.1")
	v.SetDefault("WG_ALLOWED_IPS", "0.0.0.0/0")
	v.SetDefault("MAX_KEYS_PER_USER", 3)
	v.SetDefault("DEFAULT_KEY_TTL_HOURS", 24)
	v.SetDefault("BILLING_ENABLED", false)
	v.SetDefault("KEY_COST_CREDITS", 1)
	v.SetDefault("INITIAL_BALANCE", 0)
	v.SetDefault("SWEEP_INTERVAL_MINUTES", 10)
	v.SetDefault("EXPIRY_NOTICE_DAYS", 3)
	v.SetDefault("HEALTH_ADDR", ":8080")

	cfg := &Config{
		BotToken:    v.GetString("BOT_TOKEN"),
		DatabaseURL: v.GetString("DATABASE_URL"),

		WGSubnetCIDR:      v.GetString("WG_SUBNET_CIDR"),
		WGServerPublicKey: v.GetString("WG_SERVER_PUBLIC_KEY"),
		WGEndpoint:        v.GetString("WG_ENDPOINT"),
		WGDNS:             splitCSV(v.GetString("WG_DNS")),
		WGAllowedIPs:      splitCSV(v.GetString("WG_ALLOWED_IPS")),
		WGPresharedKey:    v.GetString("WG_PRESHARED_KEY"),

		EngineAPIURL:   v.GetString("ENGINE_API_URL"),
		EngineAPIToken: v.GetString("ENGINE_API_TOKEN"),

		MaxKeysPerUser:     v.GetInt("MAX_KEYS_PER_USER"),
		DefaultKeyTTLHours: v.GetInt("DEFAULT_KEY_TTL_HOURS"),
		BillingEnabled:     v.GetBool("BILLING_ENABLED"),
		KeyCostCredits:     v.GetInt("KEY_COST_CREDITS"),
		InitialBalance:     v.GetInt("INITIAL_BALANCE"),

		SweepInterval:    time.Duration(v.GetInt("SWEEP_INTERVAL_MINUTES")) * time.Minute,
		ExpiryNoticeDays: v.GetInt("EXPIRY_NOTICE_DAYS"),
		HealthAddr:       v.GetString("HEALTH_ADDR"),
	}

	ids, err := parseAdminIDs(v.GetString("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsAdminID reports whether the Telegram id belongs to a configured operator.
func (c *Config) IsAdminID(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if len(c.AdminIDs) == 0 {
		return errors.New("ADMIN_IDS is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.WGServerPublicKey == "" {
		return errors.New("WG_SERVER_PUBLIC_KEY is required")
	}
	if c.WGEndpoint == "" {
		return errors.New("WG_ENDPOINT is required")
	}
	if c.EngineAPIURL == "" {
		return errors.New("ENGINE_API_URL is required")
	}
	if c.MaxKeysPerUser <= 0 {
		return errors.New("MAX_KEYS_PER_USER must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL_MINUTES must be positive")
	}
	return nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, item := range splitCSV(raw) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS: bad id %q: %w", item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
