// Package config loads the typed application configuration from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/learned"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyDatabasePath      = "database.path"
	KeyRulesPath         = "rules.path"
	KeyPatternWords      = "learned.pattern_words"
	KeyOnlyUncategorized = "classification.only_uncategorized"
	KeyDryRun            = "classification.dry_run"
	KeyAuditActor        = "audit.actor"
	KeyLogLevel          = "logging.level"
	KeyLogFormat         = "logging.format"
)

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "$HOME/.local/share/toro/toro.db"

// Config is the resolved application configuration.
type Config struct {
	Database       DatabaseConfig
	Rules          RulesConfig
	Audit          AuditConfig
	Logging        LoggingConfig
	Learned        LearnedConfig
	Classification ClassificationConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// RulesConfig locates the rule catalog. An empty path selects the embedded default.
type RulesConfig struct {
	Path string
}

// LearnedConfig tunes learned rule derivation.
type LearnedConfig struct {
	PatternWords int
}

// ClassificationConfig holds defaults for classification runs.
type ClassificationConfig struct {
	OnlyUncategorized bool
	DryRun            bool
}

// AuditConfig names the actor recorded in audit entries.
type AuditConfig struct {
	Actor string
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath)
	v.SetDefault(KeyRulesPath, "")
	v.SetDefault(KeyPatternWords, learned.DefaultPatternWords)
	v.SetDefault(KeyOnlyUncategorized, true)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyAuditActor, "system")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load resolves the configuration from v, expanding paths and validating values.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString(KeyDatabasePath)),
		},
		Rules: RulesConfig{
			Path: ExpandPath(v.GetString(KeyRulesPath)),
		},
		Learned: LearnedConfig{
			PatternWords: v.GetInt(KeyPatternWords),
		},
		Classification: ClassificationConfig{
			OnlyUncategorized: v.GetBool(KeyOnlyUncategorized),
			DryRun:            v.GetBool(KeyDryRun),
		},
		Audit: AuditConfig{
			Actor: strings.TrimSpace(v.GetString(KeyAuditActor)),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString(KeyLogLevel)),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: %s is required", common.ErrMissingConfig, KeyDatabasePath)
	}
	if c.Learned.PatternWords < 1 {
		return fmt.Errorf("%w: %s must be at least 1, got %d", common.ErrInvalidConfig, KeyPatternWords, c.Learned.PatternWords)
	}
	if c.Audit.Actor == "" {
		return fmt.Errorf("%w: %s is required", common.ErrMissingConfig, KeyAuditActor)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: %s must be console or json, got %q", common.ErrInvalidConfig, KeyLogFormat, c.Logging.Format)
	}
	return nil
}

// ExpandPath expands a leading ~ and $VAR references in a path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
