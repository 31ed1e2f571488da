package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "https://damadam.pk", cfg.Platform.BaseURL)
	assert.Equal(t, 4, cfg.Resolver.MaxPages)
	assert.Equal(t, 20, cfg.Resolver.ProbeLimit)
	assert.Equal(t, 8, cfg.Resolver.MinIDDigits)
	assert.Equal(t, int64(1_000_000), cfg.Resolver.MinIDValue)
	assert.Equal(t, 350, cfg.Message.MaxLength)
	assert.Equal(t, 1, cfg.Retry.DeniedRetries)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mitto.toml")
	content := `
[platform]
base_url = "https://staging.damadam.pk"
login_nick = "tester"

[resolver]
max_pages = 2

[retry]
denied_retries = 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.damadam.pk", cfg.Platform.BaseURL)
	assert.Equal(t, 2, cfg.Resolver.MaxPages)
	assert.Equal(t, 0, cfg.Retry.DeniedRetries)
	// Untouched sections keep their defaults.
	assert.Equal(t, 20, cfg.Resolver.ProbeLimit)
	assert.Equal(t, 45*time.Second, cfg.Browser.PageTimeout)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte("[platform]\nlogin_nick = \"base\"\n[run]\nmax_items = 3\n"), 0644))
	require.NoError(t, os.WriteFile(override, []byte("[platform]\nlogin_nick = \"override\"\n"), 0644))

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Platform.LoginNick)
	assert.Equal(t, 3, cfg.Run.MaxItems)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mitto.toml")
	require.NoError(t, os.WriteFile(path, []byte("[platform]\nlogin_nick = \"from-file\"\n"), 0644))

	t.Setenv("MITTO_LOGIN_NICK", "from-env")
	t.Setenv("MITTO_MAX_PAGES", "7")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Platform.LoginNick)
	assert.Equal(t, 7, cfg.Resolver.MaxPages)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/mitto.toml")
	assert.Error(t, err)
}

func TestValidate_RejectsBadBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Platform.LoginNick = "tester"
	require.NoError(t, cfg.Validate())

	cfg.Resolver.MaxPages = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresLoginNick(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Platform.LoginNick = ""
	assert.Error(t, cfg.Validate())
}
