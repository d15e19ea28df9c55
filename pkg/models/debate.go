package models

import (
	"time"

	"github.com/google/uuid"
)

// DebateFormat determines team sizes and default turn counts.
type DebateFormat string

// Supported debate formats.
const (
	Format1v1 DebateFormat = "1v1"
	Format2v2 DebateFormat = "2v2"
	Format3v3 DebateFormat = "3v3"
)

// DebateMode selects whether lifecycle events are streamed live.
type DebateMode string

// Debate modes.
const (
	ModeAsync DebateMode = "async"
	ModeLive  DebateMode = "live"
)

// DebateStatus is the run lifecycle of a debate. The orchestrator
// exclusively owns transitions after in_progress.
type DebateStatus string

// Debate statuses.
const (
	DebateStatusScheduled  DebateStatus = "scheduled"
	DebateStatusInProgress DebateStatus = "in_progress"
	DebateStatusCompleted  DebateStatus = "completed"
	DebateStatusFailed     DebateStatus = "failed"
)

// Side is the position a participant argues.
type Side string

// Debate sides.
const (
	SidePro Side = "pro"
	SideCon Side = "con"
)

// Debate is a structured run of alternating turns on a topic.
type Debate struct {
	ID                  uuid.UUID    `json:"id"`
	Topic               string       `json:"topic"`
	Format              DebateFormat `json:"format"`
	Mode                DebateMode   `json:"mode"`
	MaxTurns            int          `json:"max_turns"`
	CurrentTurn         int          `json:"current_turn"`
	TurnTimeoutSeconds  int          `json:"turn_timeout_seconds"`
	TurnCooldownSeconds int          `json:"turn_cooldown_seconds"`
	Status              DebateStatus `json:"status"`
	IsSandbox           bool         `json:"is_sandbox"`
	StartedAt           *time.Time   `json:"started_at,omitempty"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

// DebateParticipant binds an agent to a debate with a side and a slot in
// the round-robin order (pro₁, con₁, pro₂, con₂, …).
type DebateParticipant struct {
	ID        uuid.UUID `json:"id"`
	DebateID  uuid.UUID `json:"debate_id"`
	AgentID   uuid.UUID `json:"agent_id"`
	Side      Side      `json:"side"`
	TeamID    string    `json:"team_id,omitempty"`
	TurnOrder int       `json:"turn_order"`
}

// TurnStatus is the terminal-or-pending state of one turn slot.
type TurnStatus string

// Turn statuses. A turn never leaves a terminal state.
const (
	TurnStatusPending     TurnStatus = "pending"
	TurnStatusValidated   TurnStatus = "validated"
	TurnStatusTimeout     TurnStatus = "timeout"
	TurnStatusFormatError TurnStatus = "format_error"
)

// Citation is a source reference supporting a claim.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Quote string `json:"quote"`
}

// Turn is one ordered unit of a debate.
type Turn struct {
	ID               uuid.UUID  `json:"id"`
	DebateID         uuid.UUID  `json:"debate_id"`
	AgentID          uuid.UUID  `json:"agent_id"`
	TurnNumber       int        `json:"turn_number"`
	Status           TurnStatus `json:"status"`
	Stance           string     `json:"stance,omitempty"`
	Claim            string     `json:"claim,omitempty"`
	Argument         string     `json:"argument,omitempty"`
	Citations        []Citation `json:"citations"`
	RebuttalTargetID *uuid.UUID `json:"rebuttal_target_id,omitempty"`
	TeamID           string     `json:"team_id,omitempty"`
	TokenCount       int        `json:"token_count"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ValidatedAt      *time.Time `json:"validated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Terminal reports whether the turn has reached a final status.
func (s TurnStatus) Terminal() bool {
	return s == TurnStatusValidated || s == TurnStatusTimeout || s == TurnStatusFormatError
}
