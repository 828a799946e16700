package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		World: WorldConfig{
			Width:   300,
			Height:  300,
			DataDir: "data",
		},
		Instancing: InstancingConfig{
			File:                "data/instances.db",
			ReferenceWorldSize:  90000,
			WorldSizeScaling:    true,
			EmpireEmptinessDays: 30,
			NewbieLevelCap:      25,
			DefaultSector:       "adventure",
			GenerateInterval:    time.Minute,
			ResetInterval:       30 * time.Second,
			PruneInterval:       time.Minute,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroWorld(t *testing.T) {
	cfg := validConfig()
	cfg.World.Width = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyInstanceFile(t *testing.T) {
	cfg := validConfig()
	cfg.Instancing.File = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := validConfig()
	cfg.Instancing.GenerateInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
world:
  width: 50
  height: 40
  seed: 7
instancing:
  file: /tmp/instances.db
  reference_world_size: 2000
  generate_interval: 90s
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.World.Width)
	assert.Equal(t, int64(7), cfg.World.Seed)
	assert.Equal(t, "/tmp/instances.db", cfg.Instancing.File)
	assert.Equal(t, 2000, cfg.Instancing.ReferenceWorldSize)
	assert.Equal(t, 90*time.Second, cfg.Instancing.GenerateInterval)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 90000, cfg.Instancing.ReferenceWorldSize)
	assert.Equal(t, 25, cfg.Instancing.NewbieLevelCap)
	assert.True(t, cfg.Instancing.WorldSizeScaling)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateWorldDimensionsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.World.Width = rapid.IntRange(-10, 10).Draw(t, "width")
		cfg.World.Height = rapid.IntRange(-10, 10).Draw(t, "height")
		err := cfg.Validate()
		if cfg.World.Width >= 1 && cfg.World.Height >= 1 {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	})
}
