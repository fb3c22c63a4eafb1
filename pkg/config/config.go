package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"

	"reportchain/pkg/chain"
)

const (
	StoreModePebble = "pebble"
	StoreModeMemory = "memory"
)

const (
	defaultAddress        = "0.0.0.0"
	defaultPort           = 8080
	defaultDBPath         = "./.database"
	defaultCacheSize      = 64 << 20 // 64 MiB
	defaultMaxRequestBody = 5 << 20  // 5 MiB
	defaultRateRPS        = 1000
	defaultRateBurst      = 1000
	defaultGapScanCron    = "*/5 * * * *"
	defaultGapScanPoll    = 30 * time.Second
	defaultSlowThreshold  = 200 * time.Millisecond
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// VisibilityPolicy builds the display allow-list from the display section.
func (c *Config) VisibilityPolicy() chain.VisibilityPolicy {
	policy := chain.DefaultVisibilityPolicy()
	if len(c.Display.VisibleActions) > 0 {
		policy = chain.NewVisibilityPolicy(c.Display.VisibleActions...)
	}
	return policy.Without(c.Display.HiddenActions...)
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in missing values.
func (c *Config) ApplyDefaults() {
	if c.Server.RateLimit.RPS <= 0 {
		c.Server.RateLimit.RPS = defaultRateRPS
	}
	if c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = defaultRateBurst
	}
	if c.Server.MaxRequestBody <= 0 {
		c.Server.MaxRequestBody = SizeBytes(defaultMaxRequestBody)
	}
	if c.Store.Mode == "" {
		c.Store.Mode = StoreModePebble
	}
	if c.Store.Mode == StoreModePebble && c.Store.DBPath == "" {
		c.Store.DBPath = defaultDBPath
	}
	if c.Store.CacheSize == 0 {
		c.Store.CacheSize = SizeBytes(defaultCacheSize)
	}
	if c.GapScan.Cron == "" {
		c.GapScan.Cron = defaultGapScanCron
	}
	if c.GapScan.PollInterval.Duration() == 0 {
		c.GapScan.PollInterval = Duration(defaultGapScanPoll)
	}
	if c.Telemetry.SlowThreshold.Duration() == 0 {
		c.Telemetry.SlowThreshold = Duration(defaultSlowThreshold)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// ValidateConfig applies defaults and fails fast on invalid values.
func (c *Config) ValidateConfig() error {
	c.ApplyDefaults()

	switch c.Store.Mode {
	case StoreModePebble:
		if c.Store.DBPath == "" {
			return fmt.Errorf("database path is empty: set --db flag, REPORTCHAIN_DB_PATH env, or store.db_path in config")
		}
	case StoreModeMemory:
	default:
		return fmt.Errorf("invalid store.mode %q: want %q or %q", c.Store.Mode, StoreModePebble, StoreModeMemory)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	if !gronx.New().IsValid(c.GapScan.Cron) {
		return fmt.Errorf("invalid gap_scan.cron expression: %s", c.GapScan.Cron)
	}

	if len(c.VisibilityPolicy().Names()) == 0 {
		return fmt.Errorf("display allow-list is empty: check display.visible_actions and display.hidden_actions")
	}
	return nil
}
