package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CIRCLES_DIR", "")
	t.Setenv("CIRCLES_API", "")

	var c Config
	c.LoadDefaults()

	assert.NotEmpty(t, c.DataDir)
	assert.Equal(t, "http://127.0.0.1:8750", c.APIAddr)
	assert.Equal(t, 300*time.Millisecond, c.SearchDebounce)
	assert.Equal(t, 5, c.MaxSearchResults)
	assert.Equal(t, 3, c.AttemptBudget)
	assert.Equal(t, 5*time.Second, c.NotificationLifetime)
	assert.NoError(t, c.Validate())
}

func TestLoadDefaults_Env(t *testing.T) {
	t.Setenv("CIRCLES_DIR", "/tmp/circles-env")
	t.Setenv("CIRCLES_API", "http://directory:9000")

	var c Config
	c.LoadDefaults()
	c.Resolve()

	assert.Equal(t, "/tmp/circles-env", c.DataDir)
	assert.Equal(t, "http://directory:9000", c.APIAddr)
	assert.Equal(t, filepath.Join("/tmp/circles-env", "wallet.db"), c.DBPath)
	assert.Equal(t, filepath.Join("/tmp/circles-env", "directory.db"), c.ServerDBPath)
	assert.Equal(t, filepath.Join("/tmp/circles-env", "circles.log"), c.LogFile)
}

func TestLoadJSON_OverlaysPresentKeys(t *testing.T) {
	path := writeTempJSON(t, `{
		"api_addr": "http://example:1",
		"search_debounce": "150ms",
		"notification_lifetime": 2000000000,
		"attempt_budget": 5,
		"discover": true
	}`)

	c := Config{DataDir: "keep", MaxSearchResults: 7}
	require.NoError(t, c.LoadJSON(path))

	assert.Equal(t, "keep", c.DataDir)
	assert.Equal(t, 7, c.MaxSearchResults)
	assert.Equal(t, "http://example:1", c.APIAddr)
	assert.Equal(t, 150*time.Millisecond, c.SearchDebounce)
	assert.Equal(t, 2*time.Second, c.NotificationLifetime)
	assert.Equal(t, 5, c.AttemptBudget)
	assert.True(t, c.Discover)
}

func TestLoadJSON_Errors(t *testing.T) {
	var c Config
	require.Error(t, c.LoadJSON(filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, c.LoadJSON(writeTempJSON(t, `{`)))
	require.Error(t, c.LoadJSON(writeTempJSON(t, `{"search_debounce": "soon"}`)))
	require.Error(t, c.LoadJSON(writeTempJSON(t, `{"search_debounce": true}`)))
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("CIRCLES_API", "http://from-env:1")
	dir := t.TempDir()
	path := writeTempJSON(t, `{"api_addr": "http://from-json:2", "max_search_results": 9, "log_level": "debug"}`)

	fs := newFlags(t, "--config", path, "--api", "http://from-flag:3", "--data-dir", dir)
	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "http://from-flag:3", cfg.APIAddr)
	assert.Equal(t, 9, cfg.MaxSearchResults)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "wallet.db"), cfg.DBPath)
}

func TestLoad_UnsetFlagsDoNotOverrideJSON(t *testing.T) {
	path := writeTempJSON(t, `{"attempt_budget": 4, "search_debounce": "1s"}`)

	cfg, err := Load(newFlags(t, "-c", path))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.AttemptBudget)
	assert.Equal(t, time.Second, cfg.SearchDebounce)
}

func TestLoad_FlagTypes(t *testing.T) {
	cfg, err := Load(newFlags(t,
		"--discover",
		"--search-debounce", "50ms",
		"--max-results", "3",
		"--attempts", "1",
		"--notification-lifetime", "1s",
		"--listen", ":9999",
		"--db", "/tmp/w.db",
		"--server-db", "/tmp/d.db",
		"--log-file", "/tmp/c.log",
		"--log-level", "warn",
	))
	require.NoError(t, err)

	assert.True(t, cfg.Discover)
	assert.Equal(t, 50*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 3, cfg.MaxSearchResults)
	assert.Equal(t, 1, cfg.AttemptBudget)
	assert.Equal(t, time.Second, cfg.NotificationLifetime)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "/tmp/w.db", cfg.DBPath)
	assert.Equal(t, "/tmp/d.db", cfg.ServerDBPath)
	assert.Equal(t, "/tmp/c.log", cfg.LogFile)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(newFlags(t, "--attempts", "0"))
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Load(newFlags(t, "--log-level", "chatty"))
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.json")))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.LoadDefaults()
		return c
	}

	cases := map[string]func(*Config){
		"empty data dir":    func(c *Config) { c.DataDir = "" },
		"negative debounce": func(c *Config) { c.SearchDebounce = -1 },
		"zero results":      func(c *Config) { c.MaxSearchResults = 0 },
		"zero lifetime":     func(c *Config) { c.NotificationLifetime = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}
