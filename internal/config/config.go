// Package config loads daemon configuration from file, environment,
// and defaults, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/docshare/docsync/internal/staleness"
)

// Config holds every tunable the daemon and CLI read.
type Config struct {
	// RemoteURL is the base URL of the document service.
	RemoteURL string `mapstructure:"remote_url"`

	// CachePath is the local cache database file.
	CachePath string `mapstructure:"cache_path"`

	// SessionFile is the identity file maintained by the auth frontend.
	SessionFile string `mapstructure:"session_file"`

	// CatalogTTL is the staleness threshold for the document catalog.
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`

	// LeaderboardTTL is the staleness threshold for the leaderboard.
	LeaderboardTTL time.Duration `mapstructure:"leaderboard_ttl"`

	// DashboardPort is the WebSocket dashboard listen port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile is the rotating log destination; empty logs to stderr.
	LogFile string `mapstructure:"log_file"`

	// LogMaxSizeMB is the size at which the log file rotates.
	LogMaxSizeMB int `mapstructure:"log_max_size_mb"`

	// LogMaxBackups is how many rotated files to keep.
	LogMaxBackups int `mapstructure:"log_max_backups"`

	// LogMaxAgeDays is how long rotated files are kept.
	LogMaxAgeDays int `mapstructure:"log_max_age_days"`
}

// Load reads configuration. With an explicit path the file must exist;
// otherwise docsync.yaml is searched in the working directory and
// ~/.docsync, and a missing file just means defaults.
//
// Every key can be overridden through the environment with a DOCSYNC_
// prefix, e.g. DOCSYNC_REMOTE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".docsync")

	v.SetDefault("remote_url", "http://localhost:8787")
	v.SetDefault("cache_path", filepath.Join(stateDir, "cache.db"))
	v.SetDefault("session_file", filepath.Join(stateDir, "session.json"))
	v.SetDefault("catalog_ttl", staleness.DefaultCatalogTTL)
	v.SetDefault("leaderboard_ttl", staleness.DefaultLeaderboardTTL)
	v.SetDefault("dashboard_port", 8424)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)

	v.SetEnvPrefix("DOCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("docsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(stateDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.RemoteURL == "" {
		return fmt.Errorf("remote_url is required")
	}
	if c.CachePath == "" {
		return fmt.Errorf("cache_path is required")
	}
	if c.CatalogTTL < 0 {
		return fmt.Errorf("catalog_ttl must not be negative (got %v)", c.CatalogTTL)
	}
	if c.LeaderboardTTL < 0 {
		return fmt.Errorf("leaderboard_ttl must not be negative (got %v)", c.LeaderboardTTL)
	}
	if c.DashboardPort < 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("dashboard_port %d out of range", c.DashboardPort)
	}
	return nil
}
