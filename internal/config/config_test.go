package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2, cfg.HTTP.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.SearchTimeout)
	assert.True(t, cfg.ProviderEnabled("animefire"))
	assert.Equal(t, "https://fallback.test", cfg.ProviderURL("animefire", "https://fallback.test"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provedores.toml")
	content := `
debug = true
search_timeout = "5s"

[http]
timeout = "10s"
max_retries = 4
user_agent = "TestAgent/1.0"

[providers.AnimeFire]
url = "https://animefire.mirror.test/"

[providers.vizer]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 4, cfg.HTTP.MaxRetries)
	assert.Equal(t, "TestAgent/1.0", cfg.HTTP.UserAgent)
	assert.Equal(t, 350*time.Millisecond, cfg.HTTP.RetryDelay)

	assert.Equal(t, "https://animefire.mirror.test", cfg.ProviderURL("animefire", "x"))
	assert.False(t, cfg.ProviderEnabled("Vizer"))
	assert.True(t, cfg.ProviderEnabled("goyabu"))
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.HTTP.MaxRetries)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PROVEDORES_HTTP_MAX_RETRIES", "7")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.HTTP.MaxRetries)
}

func TestNilConfigFallbacks(t *testing.T) {
	var cfg *Config
	assert.True(t, cfg.ProviderEnabled("any"))
	assert.Equal(t, "fb", cfg.ProviderURL("any", "fb"))
}
