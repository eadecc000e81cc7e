package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration accepts either a string such as "300ms" or integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// jsonConfig only exists for unmarshalling. Absent keys leave the current
// value untouched.
type jsonConfig struct {
	DataDir              *string   `json:"data_dir"`
	DBPath               *string   `json:"db_path"`
	APIAddr              *string   `json:"api_addr"`
	Discover             *bool     `json:"discover"`
	ListenAddr           *string   `json:"listen_addr"`
	ServerDBPath         *string   `json:"server_db_path"`
	LogFile              *string   `json:"log_file"`
	LogLevel             *string   `json:"log_level"`
	SearchDebounce       *Duration `json:"search_debounce"`
	MaxSearchResults     *int      `json:"max_search_results"`
	AttemptBudget        *int      `json:"attempt_budget"`
	NotificationLifetime *Duration `json:"notification_lifetime"`
}

// LoadJSON overlays c with the values present in the file at path.
func (c *Config) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setIf(&c.DataDir, jc.DataDir)
	setIf(&c.DBPath, jc.DBPath)
	setIf(&c.APIAddr, jc.APIAddr)
	setIf(&c.Discover, jc.Discover)
	setIf(&c.ListenAddr, jc.ListenAddr)
	setIf(&c.ServerDBPath, jc.ServerDBPath)
	setIf(&c.LogFile, jc.LogFile)
	setIf(&c.LogLevel, jc.LogLevel)
	setIf(&c.MaxSearchResults, jc.MaxSearchResults)
	setIf(&c.AttemptBudget, jc.AttemptBudget)
	if jc.SearchDebounce != nil {
		c.SearchDebounce = jc.SearchDebounce.Duration
	}
	if jc.NotificationLifetime != nil {
		c.NotificationLifetime = jc.NotificationLifetime.Duration
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
