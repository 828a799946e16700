// Package config provides Viper-based configuration loading for the MUD server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File is an optional log file path. When set, log output is written
	// to the file in addition to stderr.
	File string `mapstructure:"file"`
}

// WorldConfig holds world geometry and content settings.
type WorldConfig struct {
	// Width is the map width in tiles.
	Width int `mapstructure:"width"`
	// Height is the map height in tiles.
	Height int `mapstructure:"height"`
	// DataDir is the directory containing adventure and map YAML files.
	DataDir string `mapstructure:"data_dir"`
	// Seed is the map generation seed used when no map file is present.
	Seed int64 `mapstructure:"seed"`
}

// InstancingConfig holds adventure instancing tunables.
type InstancingConfig struct {
	// File is the path of the persisted instance file.
	File string `mapstructure:"file"`
	// ReferenceWorldSize is the historical world size (in tiles) that
	// per-adventure instance caps were calibrated against. Caps scale by
	// actual-size/reference-size when WorldSizeScaling is on.
	ReferenceWorldSize int `mapstructure:"reference_world_size"`
	// WorldSizeScaling toggles instance-cap adjustment by world size.
	WorldSizeScaling bool `mapstructure:"world_size_scaling"`
	// EmpireEmptinessDays is how long an empire may be logged out before
	// its territory stops hosting new instances.
	EmpireEmptinessDays int `mapstructure:"empire_emptiness_days"`
	// NewbieLevelCap is the highest adventure level considered newbie content.
	NewbieLevelCap int `mapstructure:"newbie_level_cap"`
	// DefaultSector is the sector assigned to instanced interior rooms.
	DefaultSector string `mapstructure:"default_sector"`
	// GenerateInterval is the delay between instance generation pulses.
	GenerateInterval time.Duration `mapstructure:"generate_interval"`
	// ResetInterval is the delay between instance reset pulses.
	ResetInterval time.Duration `mapstructure:"reset_interval"`
	// PruneInterval is the delay between instance pruning pulses.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	World      WorldConfig      `mapstructure:"world"`
	Instancing InstancingConfig `mapstructure:"instancing"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWorld(c.World); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateInstancing(c.Instancing); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	if w.Width < 1 {
		errs = append(errs, fmt.Sprintf("world.width must be >= 1, got %d", w.Width))
	}
	if w.Height < 1 {
		errs = append(errs, fmt.Sprintf("world.height must be >= 1, got %d", w.Height))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateInstancing(i InstancingConfig) error {
	var errs []string
	if i.File == "" {
		errs = append(errs, "instancing.file must not be empty")
	}
	if i.ReferenceWorldSize < 1 {
		errs = append(errs, fmt.Sprintf("instancing.reference_world_size must be >= 1, got %d", i.ReferenceWorldSize))
	}
	if i.EmpireEmptinessDays < 0 {
		errs = append(errs, fmt.Sprintf("instancing.empire_emptiness_days must be >= 0, got %d", i.EmpireEmptinessDays))
	}
	if i.NewbieLevelCap < 0 {
		errs = append(errs, fmt.Sprintf("instancing.newbie_level_cap must be >= 0, got %d", i.NewbieLevelCap))
	}
	if i.GenerateInterval <= 0 {
		errs = append(errs, "instancing.generate_interval must be positive")
	}
	if i.ResetInterval <= 0 {
		errs = append(errs, "instancing.reset_interval must be positive")
	}
	if i.PruneInterval <= 0 {
		errs = append(errs, "instancing.prune_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MUD_ prefix
	v.SetEnvPrefix("MUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("world.width", 300)
	v.SetDefault("world.height", 300)
	v.SetDefault("world.data_dir", "data")
	v.SetDefault("world.seed", 0)

	v.SetDefault("instancing.file", "data/instances.db")
	v.SetDefault("instancing.reference_world_size", 90000)
	v.SetDefault("instancing.world_size_scaling", true)
	v.SetDefault("instancing.empire_emptiness_days", 30)
	v.SetDefault("instancing.newbie_level_cap", 25)
	v.SetDefault("instancing.default_sector", "adventure")
	v.SetDefault("instancing.generate_interval", "1m")
	v.SetDefault("instancing.reset_interval", "30s")
	v.SetDefault("instancing.prune_interval", "1m")
}
