package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
)

var defaultOrigins = []string{
	"http://localhost:8977",
	"http://localhost:3000",
	"https://hoverwars.xyz",
	"https://www.hoverwars.xyz",
}

const defaultAppID = "1c05c820fab631f62d55c071431e1902db34dc4555a2f6f5b467878d73834f1b"

type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
	NATSURL        string

	// Ledger settings are handed to clients; the server never calls the ledger.
	LedgerURL   string
	LedgerAppID string

	Rules arena.Rules
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads an optional .env file, then the environment, then the YAML
// rules file named by ARENA_RULES_FILE.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which is os.LookupEnv outside tests.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Host:        get("HOST", "0.0.0.0"),
		LogLevel:    get("LOG_LEVEL", "info"),
		LogFormat:   get("LOG_FORMAT", "json"),
		NATSURL:     get("NATS_URL", ""),
		LedgerURL:   get("LINERA_NODE_URL", "https://faucet.testnet-conway.linera.net"),
		LedgerAppID: get("LINERA_APP_ID", defaultAppID),
		Rules:       arena.DefaultRules(),
	}

	port, err := strconv.Atoi(get("PORT", "8976"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %q", get("PORT", ""))
	}
	cfg.Port = port

	cfg.AllowedOrigins = defaultOrigins
	if v := get("ALLOWED_ORIGINS", ""); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	if path := get("ARENA_RULES_FILE", ""); path != "" {
		if err := cfg.loadRules(path); err != nil {
			return Config{}, err
		}
	}

	if v := get("ARENA_DEBUG_GOAL", ""); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ARENA_DEBUG_GOAL %q: %w", v, err)
		}
		cfg.Rules.DebugGoal = on
	}

	if err := cfg.Rules.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// rulesFile mirrors arena.Rules; nil fields keep their defaults.
type rulesFile struct {
	MatchSeconds  *int           `yaml:"match_seconds"`
	TickInterval  *time.Duration `yaml:"tick_interval"`
	RespawnDelay  *time.Duration `yaml:"respawn_delay"`
	WinScore      *int           `yaml:"win_score"`
	SpawnDepth    *float64       `yaml:"spawn_depth"`
	KillThreshold *float64       `yaml:"kill_threshold"`
	DebugGoal     *bool          `yaml:"debug_goal"`
}

func (c *Config) loadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	r := &c.Rules
	if f.MatchSeconds != nil {
		r.MatchSeconds = *f.MatchSeconds
	}
	if f.TickInterval != nil {
		r.TickInterval = *f.TickInterval
	}
	if f.RespawnDelay != nil {
		r.RespawnDelay = *f.RespawnDelay
	}
	if f.WinScore != nil {
		r.WinScore = *f.WinScore
	}
	if f.SpawnDepth != nil {
		r.SpawnDepth = *f.SpawnDepth
	}
	if f.KillThreshold != nil {
		r.KillThreshold = *f.KillThreshold
	}
	if f.DebugGoal != nil {
		r.DebugGoal = *f.DebugGoal
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
