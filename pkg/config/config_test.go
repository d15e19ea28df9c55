package config

import (
	"testing"

	"github.com/agonai/agon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.DefaultTurnTimeout)
	assert.Equal(t, 10, cfg.DefaultTurnCooldown)
	assert.Equal(t, 500, cfg.DefaultTokenLimit)
	assert.Equal(t, 3, cfg.MaxConcurrentDebatesPerAgent)
	assert.Equal(t, 20, cfg.MaxFactchecksPerDebate)
	assert.Equal(t, int64(10240), cfg.BodyLimitBytes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_TURN_TIMEOUT", "30")
	t.Setenv("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.DefaultTurnTimeout)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.ClaudeModel)
	// Primary model leads the fallback chain and is not duplicated.
	require.Len(t, cfg.FallbackModels, 2)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.FallbackModels[0])
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.FallbackModels[1])
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("DEFAULT_MAX_TURNS", "ten")

	_, err := Load()
	assert.Error(t, err)
}

func TestFormatDefaults(t *testing.T) {
	tests := []struct {
		format models.DebateFormat
		agents int
		turns  int
	}{
		{models.Format1v1, 2, 10},
		{models.Format2v2, 4, 8},
		{models.Format3v3, 6, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.agents, AgentCount(tt.format), string(tt.format))
		assert.Equal(t, tt.turns, DefaultTurns(tt.format), string(tt.format))
	}
}
