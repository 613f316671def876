package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_BOT_TOKEN", "ALERT_CHANNEL_ID", "COMMAND_PREFIX", "TORN_API_KEY", "FACTION_ID",
		"API_REQUESTS_PER_MINUTE", "DATABASE_DRIVER", "DATABASE_URL", "UPSERT_BATCH_SIZE",
		"POLLING_INTERVAL_SECONDS", "LOG_LEVEL", "BOT_CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
	// Keep godotenv from picking up a developer's .env
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "./data/bot.db", cfg.DatabaseURL)
	assert.Equal(t, 500, cfg.UpsertBatchSize)
	assert.Equal(t, 90, cfg.APIRequestsPerMinute)
	assert.Equal(t, 30*time.Second, cfg.PollingInterval())
	assert.Equal(t, "info", cfg.LogLevel)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_BOT_TOKEN")
	assert.Contains(t, err.Error(), "TORN_API_KEY")
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("TORN_API_KEY", "key")
	t.Setenv("FACTION_ID", "12345")
	t.Setenv("POLLING_INTERVAL_SECONDS", "15")
	t.Setenv("DATABASE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), cfg.FactionID)
	assert.Equal(t, 15*time.Second, cfg.PollingInterval())
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric interval", "POLLING_INTERVAL_SECONDS", "soon"},
		{"zero interval", "POLLING_INTERVAL_SECONDS", "0"},
		{"bad faction", "FACTION_ID", "abc"},
		{"unknown driver", "DATABASE_DRIVER", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("TORN_API_KEY", "from-env")
	t.Setenv("FACTION_ID", "1")

	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("faction_id: 777\ncommand_prefix: \"?\"\n"), 0o600))
	t.Setenv("BOT_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(777), cfg.FactionID)
	assert.Equal(t, "?", cfg.CommandPrefix)
	assert.Equal(t, "from-env", cfg.TornAPIKey)
}

func TestLoadMissingOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
