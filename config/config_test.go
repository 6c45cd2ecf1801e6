package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 2, cfg.Room.MinPlayers)
	assert.Equal(t, 6, cfg.Room.MaxPlayers)
	assert.Equal(t, 30*time.Minute, cfg.Room.IdleTimeout)
	assert.Equal(t, "@every 5m", cfg.Room.SweepSchedule)
	assert.Equal(t, 5, cfg.Game.GridSize)
	assert.Equal(t, 25, cfg.Game.MaxNumber)
	assert.Equal(t, 5, cfg.Game.StrikesToWin)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestLoadConfig_File(t *testing.T) {
	dir := writeConfig(t, `
server:
  http_address: ":7000"
room:
  max_players: 4
  idle_timeout: 10m
game:
  grid_size: 4
  max_number: 16
  strikes_to_win: 3
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.HTTPAddress)
	assert.Equal(t, 4, cfg.Room.MaxPlayers)
	assert.Equal(t, 10*time.Minute, cfg.Room.IdleTimeout)
	assert.Equal(t, 4, cfg.Game.GridSize)
	assert.Equal(t, 16, cfg.Game.MaxNumber)
	assert.Equal(t, 3, cfg.Game.StrikesToWin)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("BINGO_ROOM_MAX_PLAYERS", "3")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Room.MaxPlayers)
}

func TestLoadConfig_RejectsNonSquareBoard(t *testing.T) {
	dir := writeConfig(t, `
game:
  grid_size: 5
  max_number: 30
`)
	_, err := LoadConfig(dir)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"min players below two", func(c *Config) { c.Room.MinPlayers = 1 }},
		{"min above max", func(c *Config) { c.Room.MinPlayers = 7 }},
		{"no strikes", func(c *Config) { c.Game.StrikesToWin = 0 }},
		{"zero idle timeout", func(c *Config) { c.Room.IdleTimeout = 0 }},
		{"name bounds inverted", func(c *Config) { c.Room.MinNameLength = 30 }},
		{"zero send queue", func(c *Config) { c.Server.SendQueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
