package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	flagConfig               = "config"
	flagDataDir              = "data-dir"
	flagDBPath               = "db"
	flagAPIAddr              = "api"
	flagDiscover             = "discover"
	flagListenAddr           = "listen"
	flagServerDBPath         = "server-db"
	flagLogFile              = "log-file"
	flagLogLevel             = "log-level"
	flagSearchDebounce       = "search-debounce"
	flagMaxSearchResults     = "max-results"
	flagAttemptBudget        = "attempts"
	flagNotificationLifetime = "notification-lifetime"
)

// RegisterFlags declares every setting on fs using defaults for help text.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(flagConfig, "c", "", "Path to a JSON config file")
	fs.String(flagDataDir, d.DataDir, "Directory holding the wallet, logs and server data (or set CIRCLES_DIR)")
	fs.String(flagDBPath, "", "Wallet database path (default <data-dir>/wallet.db)")
	fs.String(flagAPIAddr, d.APIAddr, "Directory service base URL (or set CIRCLES_API)")
	fs.Bool(flagDiscover, false, "Find the directory service on the local network via mDNS")
	fs.String(flagListenAddr, d.ListenAddr, "Listen address for the directory service")
	fs.String(flagServerDBPath, "", "Directory service database path (default <data-dir>/directory.db)")
	fs.String(flagLogFile, "", "Log file for the terminal UI (default <data-dir>/circles.log)")
	fs.String(flagLogLevel, d.LogLevel, "Log level (debug|info|warn|error)")
	fs.Duration(flagSearchDebounce, d.SearchDebounce, "Quiet period before a username lookup fires")
	fs.Int(flagMaxSearchResults, d.MaxSearchResults, "Maximum number of search results shown")
	fs.Int(flagAttemptBudget, d.AttemptBudget, "Guesses allowed per recovery phrase challenge")
	fs.Duration(flagNotificationLifetime, d.NotificationLifetime, "How long notifications stay visible")
}

// ApplyFlags copies explicitly set flags into c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case flagDataDir:
			c.DataDir, err = fs.GetString(f.Name)
		case flagDBPath:
			c.DBPath, err = fs.GetString(f.Name)
		case flagAPIAddr:
			c.APIAddr, err = fs.GetString(f.Name)
		case flagDiscover:
			c.Discover, err = fs.GetBool(f.Name)
		case flagListenAddr:
			c.ListenAddr, err = fs.GetString(f.Name)
		case flagServerDBPath:
			c.ServerDBPath, err = fs.GetString(f.Name)
		case flagLogFile:
			c.LogFile, err = fs.GetString(f.Name)
		case flagLogLevel:
			c.LogLevel, err = fs.GetString(f.Name)
		case flagSearchDebounce:
			c.SearchDebounce, err = fs.GetDuration(f.Name)
		case flagMaxSearchResults:
			c.MaxSearchResults, err = fs.GetInt(f.Name)
		case flagAttemptBudget:
			c.AttemptBudget, err = fs.GetInt(f.Name)
		case flagNotificationLifetime:
			c.NotificationLifetime, err = fs.GetDuration(f.Name)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to read flags: %w", err)
	}
	return nil
}

// Load builds the effective configuration from defaults, the JSON file named
// by --config, and explicitly set flags on fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if fs.Lookup(flagConfig) != nil {
		path, err := fs.GetString(flagConfig)
		if err != nil {
			return nil, err
		}
		if path != "" {
			if err := cfg.LoadJSON(path); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.ApplyFlags(fs); err != nil {
		return nil, err
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
