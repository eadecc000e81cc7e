// Package config resolves runtime settings for circles.
//
// Sources are applied in order, later ones taking precedence:
// built-in defaults (with environment overrides), an optional JSON file,
// then command-line flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"circles/internal/logging"
)

type Config struct {
	DataDir string
	DBPath  string

	// APIAddr is the base URL of the directory service the client talks to.
	APIAddr  string
	Discover bool

	ListenAddr   string
	ServerDBPath string

	LogFile  string
	LogLevel string

	SearchDebounce       time.Duration
	MaxSearchResults     int
	AttemptBudget        int
	NotificationLifetime time.Duration
}

var ErrInvalid = errors.New("invalid configuration")

func (c *Config) LoadDefaults() {
	c.DataDir = envOr("CIRCLES_DIR", defaultDataDir())
	c.APIAddr = envOr("CIRCLES_API", "http://127.0.0.1:8750")
	c.ListenAddr = ":8750"
	c.LogLevel = envOr("CIRCLES_LOG_LEVEL", "info")
	c.SearchDebounce = 300 * time.Millisecond
	c.MaxSearchResults = 5
	c.AttemptBudget = 3
	c.NotificationLifetime = 5 * time.Second
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".circles"
	}
	return filepath.Join(home, ".circles")
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// Resolve fills paths that default to locations inside DataDir.
func (c *Config) Resolve() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "wallet.db")
	}
	if c.ServerDBPath == "" {
		c.ServerDBPath = filepath.Join(c.DataDir, "directory.db")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "circles.log")
	}
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data dir is empty", ErrInvalid)
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("%w: search debounce must not be negative", ErrInvalid)
	}
	if c.MaxSearchResults <= 0 {
		return fmt.Errorf("%w: max search results must be positive", ErrInvalid)
	}
	if c.AttemptBudget <= 0 {
		return fmt.Errorf("%w: attempt budget must be positive", ErrInvalid)
	}
	if c.NotificationLifetime <= 0 {
		return fmt.Errorf("%w: notification lifetime must be positive", ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
