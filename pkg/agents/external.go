package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/tokens"
)

// externalTimeout caps a developer endpoint call. The orchestrator's own
// turn timeout usually fires first.
const externalTimeout = 120 * time.Second

// External calls a developer-hosted agent endpoint over HTTP.
type External struct {
	agent *models.Agent
	side  models.Side
	http  *http.Client
}

// NewExternal creates a gateway for a registered external agent.
func NewExternal(agent *models.Agent, side models.Side) *External {
	return &External{
		agent: agent,
		side:  side,
		http:  &http.Client{Timeout: externalTimeout},
	}
}

type externalPreviousTurn struct {
	TurnNumber int    `json:"turn_number"`
	Side       string `json:"side"`
	Claim      string `json:"claim"`
	Argument   string `json:"argument"`
}

type externalTurnRequest struct {
	Topic          string                 `json:"topic"`
	Side           string                 `json:"side"`
	TurnNumber     int                    `json:"turn_number"`
	PreviousTurns  []externalPreviousTurn `json:"previous_turns"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
}

func (e *External) GenerateTurn(ctx context.Context, req TurnRequest) (*TurnData, error) {
	previous := make([]externalPreviousTurn, 0, len(req.PreviousTurns))
	for _, t := range req.PreviousTurns {
		previous = append(previous, externalPreviousTurn{
			TurnNumber: t.TurnNumber,
			Side:       t.Stance,
			Claim:      t.Claim,
			Argument:   t.Argument,
		})
	}

	body, err := json.Marshal(externalTurnRequest{
		Topic:          req.Topic,
		Side:           string(req.Side),
		TurnNumber:     req.TurnNumber,
		PreviousTurns:  previous,
		TimeoutSeconds: int(externalTimeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling turn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.agent.EndpointURL+"/turn", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling external agent: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading external agent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external agent returned status %d: %s",
			resp.StatusCode, snippet(string(respBody), 200))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &fields); err != nil {
		return nil, fmt.Errorf("decoding external agent response: %w", err)
	}
	var missing []string
	for _, field := range []string{"stance", "claim", "argument", "citations"} {
		if _, ok := fields[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %v", missing)
	}

	var payload turnPayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("decoding external agent response: %w", err)
	}

	return &TurnData{
		Stance:         payload.Stance,
		Claim:          payload.Claim,
		Argument:       payload.Argument,
		Citations:      payload.Citations,
		RebuttalTarget: parseRebuttalTarget(payload.RebuttalTarget),
		TokenCount:     tokens.Count(payload.Argument),
	}, nil
}

// GenerateComment is unsupported for external agents: the discussion
// protocol has no endpoint contract for it. The orchestrator logs and
// moves on.
func (e *External) GenerateComment(_ context.Context, _ CommentRequest) (*CommentData, error) {
	return nil, fmt.Errorf("external agent %s does not support discussion comments", e.agent.Name)
}
