package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config  *Config
	Sources []string // layers applied in order: "config", "env", "flags"
}

// ParseConfigFlags parses -addr, -db and -config from args.
func ParseConfigFlags(name string, args []string) (Flags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	addrPtr := fs.String("addr", ":8080", "HTTP listen address")
	dbPtr := fs.String("db", "./.database", "Pebble DB path")
	cfgPtr := fs.String("config", "./config.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// record which flags were set explicitly
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flags Flags, getenv func(string) string) string {
	if flags.Set["config"] {
		return flags.Config
	}
	if p := getenv("REPORTCHAIN_CONFIG"); p != "" {
		return p
	}
	return flags.Config
}

// ParseConfigFile loads the config file; found is false when it does not
// exist and was not requested explicitly.
func ParseConfigFile(flags Flags, getenv func(string) string) (cfg *Config, found bool, err error) {
	path := ResolveConfigPath(flags, getenv)
	cfg, err = LoadConfigFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !flags.Set["config"] {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ApplyEnv overlays REPORTCHAIN_* variables onto cfg and reports whether any
// were set. Malformed values are returned as errors.
func ApplyEnv(cfg *Config, getenv func(string) string) (bool, error) {
	used := false
	get := func(name string) string {
		v := strings.TrimSpace(getenv("REPORTCHAIN_" + name))
		if v != "" {
			used = true
		}
		return v
	}

	if v := get("ADDR"); v != "" {
		if err := setAddr(cfg, v); err != nil {
			return used, fmt.Errorf("REPORTCHAIN_ADDR: %w", err)
		}
	}
	if v := get("SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := get("SERVER_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return used, fmt.Errorf("REPORTCHAIN_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = n
	}
	if v := get("API_KEYS"); v != "" {
		cfg.Server.APIKeys = parseList(v)
	}
	if v := get("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return used, fmt.Errorf("REPORTCHAIN_RATE_RPS: %w", err)
		}
		cfg.Server.RateLimit.RPS = f
	}
	if v := get("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return used, fmt.Errorf("REPORTCHAIN_RATE_BURST: %w", err)
		}
		cfg.Server.RateLimit.Burst = n
	}

	if v := get("STORE_MODE"); v != "" {
		cfg.Store.Mode = strings.ToLower(v)
	}
	if v := get("DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := get("DISABLE_WAL"); v != "" {
		cfg.Store.DisableWAL = parseBool(v)
	}
	if v := get("CACHE_SIZE"); v != "" {
		s, err := ParseSize(v)
		if err != nil {
			return used, fmt.Errorf("REPORTCHAIN_CACHE_SIZE: %w", err)
		}
		cfg.Store.CacheSize = s
	}

	if v := get("VISIBLE_ACTIONS"); v != "" {
		cfg.Display.VisibleActions = parseList(v)
	}
	if v := get("HIDDEN_ACTIONS"); v != "" {
		cfg.Display.HiddenActions = parseList(v)
	}

	if v := get("GAP_SCAN_ENABLED"); v != "" {
		cfg.GapScan.Enabled = parseBool(v)
	}
	if v := get("GAP_SCAN_CRON"); v != "" {
		cfg.GapScan.Cron = v
	}

	if v := get("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := get("TELEMETRY_SLOW_THRESHOLD"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return used, fmt.Errorf("REPORTCHAIN_TELEMETRY_SLOW_THRESHOLD: %w", err)
		}
		cfg.Telemetry.SlowThreshold = d
	}
	return used, nil
}

// LoadEffectiveConfig layers file, env and explicitly set flags, then
// validates the result.
func LoadEffectiveConfig(flags Flags, getenv func(string) string) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	cfg, found, err := ParseConfigFile(flags, getenv)
	if err != nil {
		return res, err
	}
	if found {
		res.Sources = append(res.Sources, "config")
	}

	envUsed, err := ApplyEnv(cfg, getenv)
	if err != nil {
		return res, err
	}
	if envUsed {
		res.Sources = append(res.Sources, "env")
	}

	if flags.Set["addr"] || flags.Set["db"] {
		if flags.Set["addr"] {
			if err := setAddr(cfg, flags.Addr); err != nil {
				return res, fmt.Errorf("-addr: %w", err)
			}
		}
		if flags.Set["db"] {
			cfg.Store.DBPath = flags.DB
		}
		res.Sources = append(res.Sources, "flags")
	}

	if err := cfg.ValidateConfig(); err != nil {
		return res, err
	}
	res.Config = cfg
	return res, nil
}

func setAddr(cfg *Config, addr string) error {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	pi, err := strconv.Atoi(p)
	if err != nil {
		return err
	}
	cfg.Server.Address = h
	cfg.Server.Port = pi
	return nil
}

func parseList(v string) []string {
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
