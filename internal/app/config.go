package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dori/dhyan/internal/db"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	DBPath        string `mapstructure:"db_path"`
	Theme         string `mapstructure:"theme"`
	Notifications bool   `mapstructure:"notifications"`
	LogLevel      string `mapstructure:"log_level"`
	Scope         string `mapstructure:"scope"`    // Default stats scope: all or today
	InMemory      bool   `mapstructure:"in_memory"` // No database, lock or log file
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	dataDir := db.DefaultDataDir()
	return &Config{
		DataDir:       dataDir,
		DBPath:        filepath.Join(dataDir, "dhyan.db"),
		Theme:         "nord",
		Notifications: true,
		LogLevel:      "info",
		Scope:         "all",
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/dhyan/config.yaml
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".dhyan", "config.yaml")
	}
	return filepath.Join(dir, "dhyan", "config.yaml")
}

// LoadConfig merges defaults, the YAML file at path and DHYAN_* environment
// variables. An empty path uses DefaultConfigPath. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DHYAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("db_path", "")
	v.SetDefault("theme", cfg.Theme)
	v.SetDefault("notifications", cfg.Notifications)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("scope", cfg.Scope)
	v.SetDefault("in_memory", cfg.InMemory)

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// The database follows the data directory unless set explicitly
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "dhyan.db")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
