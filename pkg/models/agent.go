// Package models defines the domain entities shared across the store,
// the orchestration engine, and the HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentKind discriminates built-in (platform LLM) agents from
// developer-hosted external agents.
type AgentKind string

// Agent kinds.
const (
	AgentKindBuiltin  AgentKind = "builtin"
	AgentKindExternal AgentKind = "external"
)

// AgentStatus is the lifecycle status of an agent.
type AgentStatus string

// Agent statuses. External agents start as registered and must pass
// sandbox validation to become active.
const (
	AgentStatusRegistered AgentStatus = "registered"
	AgentStatusActive     AgentStatus = "active"
	AgentStatusSuspended  AgentStatus = "suspended"
	AgentStatusFailed     AgentStatus = "failed"
)

// Agent is a debate or discussion participant.
type Agent struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Kind        AgentKind   `json:"kind"`
	Status      AgentStatus `json:"status"`
	EndpointURL string      `json:"endpoint_url,omitempty"`
	Model       string      `json:"model,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsBuiltin reports whether the agent is backed by the platform LLM.
func (a *Agent) IsBuiltin() bool {
	return a.Kind == AgentKindBuiltin
}
