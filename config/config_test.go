package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CHAT_HISTORY_LIMIT", "")
	t.Setenv("STRIPE_CURRENCY", "")

	cfg := LoadConfig()
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 10, cfg.ChatHistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.ChatTimeout)
	assert.Equal(t, "vnd", cfg.StripeCurrency)
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("CHAT_HISTORY_LIMIT", "not-a-number")
	assert.Equal(t, 10, getEnvInt("CHAT_HISTORY_LIMIT", 10))

	t.Setenv("CHAT_HISTORY_LIMIT", "25")
	assert.Equal(t, 25, getEnvInt("CHAT_HISTORY_LIMIT", 10))
}

func TestGetEnvFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_SECRET_FILE", path)
	assert.Equal(t, "from-file", getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""))

	t.Setenv("JWT_SECRET_FILE", filepath.Join(dir, "missing"))
	assert.Equal(t, "from-env", getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""))
}
