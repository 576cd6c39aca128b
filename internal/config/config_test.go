package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", " env-token ")

	cfg, err := load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.TelegramToken)
	assert.Equal(t, "Asia/Beirut", cfg.Timezone)
	assert.Equal(t, "Asia/Beirut", cfg.Location.String())
	assert.Equal(t, 2, cfg.RollingDays)
	assert.Equal(t, 500*time.Millisecond, cfg.WakeSlack)
	assert.Equal(t, 6*time.Hour, cfg.ReloadEvery)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_SecretFileWins(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(secret, []byte("file-token\n"), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("OWNER_CHAT_ID", "42")

	cfg, err := load(secret)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.TelegramToken)
	assert.NoError(t, cfg.RequireBot())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"window too small", "ROLLING_DAYS", "0"},
		{"bad level", "LOG_LEVEL", "loud"},
		{"bad zone", "TIMEZONE", "Mars/Olympus"},
		{"not a duration", "WAKE_SLACK", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := load(filepath.Join(t.TempDir(), "absent"))
			assert.Error(t, err)
		})
	}
}

func TestRequireBot(t *testing.T) {
	assert.Error(t, Config{}.RequireBot())
	assert.Error(t, Config{TelegramToken: "x"}.RequireBot())
	assert.NoError(t, Config{TelegramToken: "x", OwnerChatID: 1}.RequireBot())
}
