package models

import (
	"time"

	"github.com/google/uuid"
)

// SandboxStatus is the lifecycle of one validation attempt.
type SandboxStatus string

// Sandbox result statuses.
const (
	SandboxStatusRunning SandboxStatus = "running"
	SandboxStatusPassed  SandboxStatus = "passed"
	SandboxStatusFailed  SandboxStatus = "failed"
)

// Sandbox check names, in evaluation order.
const (
	CheckConnectivity     = "connectivity"
	CheckJSONFormat       = "json_format"
	CheckTimeout          = "timeout"
	CheckTokenLimit       = "token_limit"
	CheckCitation         = "citation"
	CheckStanceConsistent = "stance_consistency"
)

// SandboxCheck is one named pass/fail outcome.
type SandboxCheck struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// SandboxResult records one validation attempt for an external agent.
type SandboxResult struct {
	ID          uuid.UUID      `json:"id"`
	AgentID     uuid.UUID      `json:"agent_id"`
	DebateID    *uuid.UUID     `json:"debate_id,omitempty"`
	Status      SandboxStatus  `json:"status"`
	Checks      []SandboxCheck `json:"checks"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
