// Package config holds the tuning knobs the orchestration core reads.
// Values come from environment variables with sensible defaults; the
// .env bootstrap happens in cmd/agon via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/agonai/agon/pkg/models"
)

// Config is the umbrella configuration object used throughout the
// application.
type Config struct {
	// Anthropic vendor access
	AnthropicAPIKey string
	ClaudeModel     string
	FallbackModels  []string

	// Debate defaults
	DefaultTurnTimeout  int // seconds
	DefaultTurnCooldown int // seconds
	DefaultMaxTurns     int
	DefaultTokenLimit   int

	// Sandbox
	SandboxTurns int

	// Capacity
	MaxConcurrentDebatesPerAgent int
	MaxFactchecksPerDebate       int

	// Boundary
	URLFetchTimeoutSeconds int
	BodyLimitBytes         int64
	AuthFailureThreshold   int
	AuthLockoutMinutes     int

	// Developer API
	APIKey string
}

// Default values mirroring the platform settings.
const (
	DefaultClaudeModel = "claude-haiku-4-5-20251001"

	defaultTurnTimeout  = 120
	defaultTurnCooldown = 10
	defaultMaxTurns     = 10
	defaultTokenLimit   = 500

	defaultSandboxTurns = 6

	defaultMaxConcurrentDebates = 3
	defaultMaxFactchecks        = 20

	defaultURLFetchTimeout = 5
	defaultBodyLimit       = 10 << 10 // 10 KiB
	defaultAuthFailures    = 5
	defaultAuthLockout     = 60 // minutes
)

// defaultFallbackModels is the ordered model fallback chain tried when
// the primary model is overloaded (429/529).
var defaultFallbackModels = []string{
	"claude-haiku-4-5-20251001",
	"claude-sonnet-4-5-20250929",
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		AnthropicAPIKey:              os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:                  getEnvOrDefault("CLAUDE_MODEL", DefaultClaudeModel),
		DefaultTurnTimeout:           defaultTurnTimeout,
		DefaultTurnCooldown:          defaultTurnCooldown,
		DefaultMaxTurns:              defaultMaxTurns,
		DefaultTokenLimit:            defaultTokenLimit,
		SandboxTurns:                 defaultSandboxTurns,
		MaxConcurrentDebatesPerAgent: defaultMaxConcurrentDebates,
		MaxFactchecksPerDebate:       defaultMaxFactchecks,
		URLFetchTimeoutSeconds:       defaultURLFetchTimeout,
		BodyLimitBytes:               defaultBodyLimit,
		AuthFailureThreshold:         defaultAuthFailures,
		AuthLockoutMinutes:           defaultAuthLockout,
		APIKey:                       os.Getenv("AGON_API_KEY"),
	}

	var err error
	if cfg.DefaultTurnTimeout, err = intEnv("DEFAULT_TURN_TIMEOUT", cfg.DefaultTurnTimeout); err != nil {
		return nil, err
	}
	if cfg.DefaultTurnCooldown, err = intEnv("DEFAULT_TURN_COOLDOWN", cfg.DefaultTurnCooldown); err != nil {
		return nil, err
	}
	if cfg.DefaultMaxTurns, err = intEnv("DEFAULT_MAX_TURNS", cfg.DefaultMaxTurns); err != nil {
		return nil, err
	}

	// Fallback chain: primary first, then the defaults it isn't already in.
	cfg.FallbackModels = fallbackChain(cfg.ClaudeModel)

	return cfg, nil
}

// fallbackChain returns the ordered list of models to try, starting with
// the primary and excluding duplicates.
func fallbackChain(primary string) []string {
	chain := []string{primary}
	for _, m := range defaultFallbackModels {
		if m != primary {
			chain = append(chain, m)
		}
	}
	return chain
}

// AgentCount returns the number of participants for a debate format.
func AgentCount(format models.DebateFormat) int {
	switch format {
	case models.Format2v2:
		return 4
	case models.Format3v3:
		return 6
	default:
		return 2
	}
}

// DefaultTurns returns the default turn count for a debate format.
func DefaultTurns(format models.DebateFormat) int {
	switch format {
	case models.Format2v2:
		return 8
	case models.Format3v3:
		return 6
	default:
		return 10
	}
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
