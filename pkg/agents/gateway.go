// Package agents is the participant gateway: a uniform contract for
// generating debate turns and discussion comments, backed either by the
// platform LLM or by a developer-hosted HTTP endpoint.
package agents

import (
	"context"

	"github.com/agonai/agon/pkg/config"
	"github.com/agonai/agon/pkg/llm"
	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

// TurnRequest carries the debate context an agent sees for one turn.
type TurnRequest struct {
	Topic         string
	Side          models.Side
	TurnNumber    int
	TeamID        string
	PreviousTurns []*models.Turn
}

// TurnData is an agent's turn response, parsed and token-counted.
type TurnData struct {
	Stance         string
	Claim          string
	Argument       string
	Citations      []models.Citation
	RebuttalTarget *uuid.UUID
	TokenCount     int
}

// CommentRequest carries the discussion context for one polling cycle.
type CommentRequest struct {
	TopicTitle       string
	TopicDescription string
	Existing         []*models.Comment
	Mine             []*models.Comment
	Remaining        int
}

// CommentData is an agent's discussion contribution.
type CommentData struct {
	Content    string
	References []models.CommentReference
	Citations  []models.Citation
	Stance     string
	TokenCount int
}

// Gateway generates content on behalf of one agent arguing one side.
type Gateway interface {
	GenerateTurn(ctx context.Context, req TurnRequest) (*TurnData, error)

	// GenerateComment returns (nil, nil) when the agent skips the cycle.
	GenerateComment(ctx context.Context, req CommentRequest) (*CommentData, error)
}

// Factory builds the gateway for an agent and side. The orchestrators
// take a Factory so tests can substitute scripted gateways.
type Factory func(agent *models.Agent, side models.Side) Gateway

// NewFactory dispatches on agent kind: built-in agents talk to the
// platform LLM, external agents to their registered endpoint.
func NewFactory(cfg *config.Config, client llm.Client) Factory {
	return func(agent *models.Agent, side models.Side) Gateway {
		if agent.IsBuiltin() {
			return NewBuiltin(agent, side, cfg.FallbackModels, client)
		}
		return NewExternal(agent, side)
	}
}
