package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8976", cfg.Addr())
	assert.Equal(t, defaultOrigins, cfg.AllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://faucet.testnet-conway.linera.net", cfg.LedgerURL)
	assert.Equal(t, defaultAppID, cfg.LedgerAppID)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, arena.DefaultRules(), cfg.Rules)
	assert.False(t, cfg.Rules.DebugGoal)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"HOST":             "127.0.0.1",
		"PORT":             "9000",
		"ALLOWED_ORIGINS":  "http://a.test, http://b.test,,",
		"LINERA_APP_ID":    "app-1",
		"ARENA_DEBUG_GOAL": "true",
		"NATS_URL":         "nats://localhost:4222",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "app-1", cfg.LedgerAppID)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.True(t, cfg.Rules.DebugGoal)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "port not a number", env: map[string]string{"PORT": "http"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "debug flag not a bool", env: map[string]string{"ARENA_DEBUG_GOAL": "maybe"}},
		{name: "missing rules file", env: map[string]string{"ARENA_RULES_FILE": "/does/not/exist.yaml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
match_seconds: 300
respawn_delay: 5s
win_score: 5
`), 0o600))

	cfg, err := FromEnv(envOf(map[string]string{"ARENA_RULES_FILE": path}))
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Rules.MatchSeconds)
	assert.Equal(t, 5*time.Second, cfg.Rules.RespawnDelay)
	assert.Equal(t, 5, cfg.Rules.WinScore)
	assert.Equal(t, time.Second, cfg.Rules.TickInterval, "unset fields keep defaults")
	assert.Equal(t, 1370.0, cfg.Rules.SpawnDepth)
}

func TestFromEnv_RulesFileValidated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("win_score: 0\n"), 0o600))

	_, err := FromEnv(envOf(map[string]string{"ARENA_RULES_FILE": path}))
	assert.ErrorIs(t, err, arena.ErrInvalidRules)
}
