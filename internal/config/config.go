// Package config handles fjord configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the root configuration structure for fjord.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Timeline engine settings
	Timeline TimelineConfig `yaml:"timeline" mapstructure:"timeline"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global fjord settings.
type GlobalConfig struct {
	// DataDir is where fjord stores its data (default: ~/.local/share/fjord).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TimelineConfig tunes the reconciliation and grouping engines.
type TimelineConfig struct {
	// PageSize is the fixed backward-pagination batch size.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// SearchBudget bounds the synchronous backward target-event scan.
	SearchBudget int `yaml:"search_budget" mapstructure:"search_budget"`

	// CollapseThreshold is the group length above which a collapse toggle
	// is shown.
	CollapseThreshold int `yaml:"collapse_threshold" mapstructure:"collapse_threshold"`

	// NameCap bounds how many names a group summary lists.
	NameCap int `yaml:"name_cap" mapstructure:"name_cap"`
}

// TUIConfig contains presentation settings.
type TUIConfig struct {
	// Theme selects the color theme (dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Global: GlobalConfig{
			DataDir: dataDir,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "fjord.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Timeline: TimelineConfig{
			PageSize:          50,
			SearchBudget:      100,
			CollapseThreshold: 3,
			NameCap:           3,
		},
		TUI: TUIConfig{
			Theme: "dark",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fjord")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fjord"
	}
	return filepath.Join(home, ".local", "share", "fjord")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if c.Timeline.PageSize <= 0 {
		return fmt.Errorf("timeline page_size must be positive, got %d", c.Timeline.PageSize)
	}
	if c.Timeline.SearchBudget <= 0 {
		return fmt.Errorf("timeline search_budget must be positive, got %d", c.Timeline.SearchBudget)
	}
	if c.Timeline.CollapseThreshold <= 0 {
		return fmt.Errorf("timeline collapse_threshold must be positive, got %d", c.Timeline.CollapseThreshold)
	}
	if c.Timeline.NameCap <= 0 {
		return fmt.Errorf("timeline name_cap must be positive, got %d", c.Timeline.NameCap)
	}
	return nil
}
