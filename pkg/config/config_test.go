package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportchain/pkg/models"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEffectiveConfig_Defaults(t *testing.T) {
	flags, err := ParseConfigFlags("test", []string{"-config", filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)
	// an explicitly requested file must exist
	_, err = LoadEffectiveConfig(flags, envMap(nil))
	require.ErrorIs(t, err, os.ErrNotExist)

	flags, err = ParseConfigFlags("test", nil)
	require.NoError(t, err)
	flags.Config = filepath.Join(t.TempDir(), "absent.yaml")
	res, err := LoadEffectiveConfig(flags, envMap(nil))
	require.NoError(t, err)
	assert.Empty(t, res.Sources)

	cfg := res.Config
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, StoreModePebble, cfg.Store.Mode)
	assert.Equal(t, "./.database", cfg.Store.DBPath)
	assert.Equal(t, "*/5 * * * *", cfg.GapScan.Cron)
	assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.SlowThreshold.Duration())
	assert.Equal(t, int64(64<<20), cfg.Store.CacheSize.Int64())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEffectiveConfig_Layers(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9000
  api_keys: [from-file]
  max_request_body: 1MiB
store:
  mode: memory
  cache_size: 8MB
display:
  hidden_actions: [IOU]
gap_scan:
  enabled: true
  cron: "0 * * * *"
  poll_interval: 5
telemetry:
  slow_threshold: 50ms
`)
	flags, err := ParseConfigFlags("test", []string{"-config", path, "-addr", "localhost:7000"})
	require.NoError(t, err)

	res, err := LoadEffectiveConfig(flags, envMap(map[string]string{
		"REPORTCHAIN_API_KEYS":  "k1, k2",
		"REPORTCHAIN_LOG_LEVEL": "debug",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "env", "flags"}, res.Sources)

	cfg := res.Config
	assert.Equal(t, "localhost:7000", cfg.Addr())
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxRequestBody.Int64())
	assert.Equal(t, StoreModeMemory, cfg.Store.Mode)
	assert.Equal(t, int64(8_000_000), cfg.Store.CacheSize.Int64())
	assert.True(t, cfg.GapScan.Enabled)
	assert.Equal(t, "0 * * * *", cfg.GapScan.Cron)
	assert.Equal(t, 5*time.Second, cfg.GapScan.PollInterval.Duration())
	assert.Equal(t, 50*time.Millisecond, cfg.Telemetry.SlowThreshold.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)

	policy := cfg.VisibilityPolicy()
	assert.False(t, policy.Allows(models.ActionIOU))
	assert.True(t, policy.Allows(models.ActionAddComment))
}

func TestApplyEnv_Errors(t *testing.T) {
	tests := map[string]string{
		"REPORTCHAIN_SERVER_PORT":              "eighty",
		"REPORTCHAIN_RATE_RPS":                 "fast",
		"REPORTCHAIN_CACHE_SIZE":               "lots",
		"REPORTCHAIN_ADDR":                     "no-port",
		"REPORTCHAIN_TELEMETRY_SLOW_THRESHOLD": "soon",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			used, err := ApplyEnv(&Config{}, envMap(map[string]string{name: value}))
			assert.True(t, used)
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestApplyEnv_StoreAndDisplay(t *testing.T) {
	var cfg Config
	used, err := ApplyEnv(&cfg, envMap(map[string]string{
		"REPORTCHAIN_STORE_MODE":       "MEMORY",
		"REPORTCHAIN_DISABLE_WAL":      "yes",
		"REPORTCHAIN_VISIBLE_ACTIONS":  "ADDCOMMENT,IOU",
		"REPORTCHAIN_GAP_SCAN_ENABLED": "true",
		"REPORTCHAIN_RATE_BURST":       "5",
	}))
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, StoreModeMemory, cfg.Store.Mode)
	assert.True(t, cfg.Store.DisableWAL)
	assert.True(t, cfg.GapScan.Enabled)
	assert.Equal(t, 5, cfg.Server.RateLimit.Burst)
	assert.ElementsMatch(t, []string{"ADDCOMMENT", "IOU"}, cfg.VisibilityPolicy().Names())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad store mode", mutate: func(c *Config) { c.Store.Mode = "redis" }, wantErr: "invalid store.mode"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server.port"},
		{name: "bad cron", mutate: func(c *Config) { c.GapScan.Cron = "every minute" }, wantErr: "invalid gap_scan.cron"},
		{
			name: "empty allow-list",
			mutate: func(c *Config) {
				c.Display.VisibleActions = []string{models.ActionIOU}
				c.Display.HiddenActions = []string{models.ActionIOU}
			},
			wantErr: "allow-list is empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.ValidateConfig(), tt.wantErr)
		})
	}
}

func TestLoadConfigFile_Malformed(t *testing.T) {
	path := writeConfig(t, "store:\n  cache_size: huge\n")
	_, err := LoadConfigFile(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestResolveConfigPath(t *testing.T) {
	flags, err := ParseConfigFlags("test", nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/rc.yaml", ResolveConfigPath(flags, envMap(map[string]string{"REPORTCHAIN_CONFIG": "/etc/rc.yaml"})))
	assert.Equal(t, "./config.yaml", ResolveConfigPath(flags, envMap(nil)))
}

func TestSizeAndDurationParsing(t *testing.T) {
	s, err := ParseSize("2KiB")
	require.NoError(t, err)
	assert.Equal(t, SizeBytes(2048), s)
	assert.Equal(t, "2.0 KiB", s.String())

	d, err := ParseDuration("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d.Duration())

	_, err = ParseDuration("later")
	assert.Error(t, err)
}
