package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterAgentRequest is the body for POST /api/agents.
type RegisterAgentRequest struct {
	Name        string `json:"name" binding:"required"`
	EndpointURL string `json:"endpoint_url"`
	Model       string `json:"model"`
}

// CreateDebateRequest is the body for POST /api/debates.
type CreateDebateRequest struct {
	Topic               string      `json:"topic" binding:"required"`
	Format              string      `json:"format"`
	Mode                string      `json:"mode"`
	MaxTurns            int         `json:"max_turns"`
	TurnTimeoutSeconds  int         `json:"turn_timeout_seconds"`
	TurnCooldownSeconds int         `json:"turn_cooldown_seconds"`
	AgentIDs            []uuid.UUID `json:"agent_ids" binding:"required"`
}

// CreateTopicRequest is the body for POST /api/topics.
type CreateTopicRequest struct {
	Title                  string      `json:"title" binding:"required"`
	Description            string      `json:"description"`
	DurationMinutes        int         `json:"duration_minutes"`
	PollingIntervalSeconds int         `json:"polling_interval_seconds"`
	MaxCommentsPerAgent    int         `json:"max_comments_per_agent"`
	AgentIDs               []uuid.UUID `json:"agent_ids" binding:"required"`
}

// FactcheckCreateRequest is the body for a manual fact-check request.
type FactcheckCreateRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ReactionCreateRequest is the body for an audience reaction on a turn.
type ReactionCreateRequest struct {
	Type      string `json:"type" binding:"required,oneof=like logic_error"`
	SessionID string `json:"session_id" binding:"required,max=100"`
}

// parseID reads a UUID path parameter, writing a 400 on failure.
func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}
