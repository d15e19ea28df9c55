package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/tokens"
	"github.com/google/uuid"
)

// RunDebate drives a started debate to completion. Orchestrator-level
// failures mark the debate failed; individual turn failures are recorded
// on the turn and the debate continues.
func (e *Engine) RunDebate(ctx context.Context, debateID uuid.UUID) {
	if err := e.runDebate(ctx, debateID); err != nil {
		slog.Error("Debate failed", "debate_id", debateID, "error", err)
		if err := e.store.FinishDebate(ctx, debateID, models.DebateStatusFailed); err != nil {
			slog.Error("Failed to mark debate failed", "debate_id", debateID, "error", err)
		}
	}
}

func (e *Engine) runDebate(ctx context.Context, debateID uuid.UUID) error {
	debate, err := e.store.GetDebate(ctx, debateID)
	if err != nil {
		return fmt.Errorf("loading debate: %w", err)
	}
	participants, err := e.store.ListDebateParticipants(ctx, debateID)
	if err != nil {
		return fmt.Errorf("loading participants: %w", err)
	}
	if len(participants) == 0 {
		return fmt.Errorf("debate has no participants")
	}

	isLive := debate.Mode == models.ModeLive
	slog.Info("Starting debate",
		"debate_id", debateID, "topic", debate.Topic,
		"participants", len(participants), "max_turns", debate.MaxTurns)

	for turnNumber := 1; turnNumber <= debate.MaxTurns; turnNumber++ {
		participant := participants[(turnNumber-1)%len(participants)]

		turn := &models.Turn{
			DebateID:   debateID,
			AgentID:    participant.AgentID,
			TurnNumber: turnNumber,
			Status:     models.TurnStatusPending,
			TeamID:     participant.TeamID,
		}
		if err := e.store.CreateTurn(ctx, turn); err != nil {
			return fmt.Errorf("creating turn %d: %w", turnNumber, err)
		}

		agent, err := e.store.GetAgent(ctx, participant.AgentID)
		if err != nil {
			return fmt.Errorf("loading agent for turn %d: %w", turnNumber, err)
		}
		previous, err := e.store.ListValidatedTurns(ctx, debateID)
		if err != nil {
			return fmt.Errorf("loading previous turns: %w", err)
		}

		if isLive {
			e.bus.Publish(debateID, events.Event{Type: events.EventTurnStart, Data: map[string]any{
				"turn_number": turnNumber,
				"agent_id":    participant.AgentID.String(),
				"side":        string(participant.Side),
				"team_id":     participant.TeamID,
			}})
		}

		// External agents are capped on concurrent debates; a turn in an
		// over-limit debate is skipped, not the whole debate.
		if !agent.IsBuiltin() {
			active, err := e.store.CountActiveDebates(ctx, agent.ID, debateID)
			if err != nil {
				return fmt.Errorf("counting active debates: %w", err)
			}
			if active >= e.cfg.MaxConcurrentDebatesPerAgent {
				reason := fmt.Sprintf("Concurrent debate limit exceeded (max %d)", e.cfg.MaxConcurrentDebatesPerAgent)
				e.recordErrorTurn(ctx, turn, reason)
				e.advance(ctx, debateID, turnNumber)
				slog.Warn("Turn skipped, concurrent debate limit exceeded",
					"turn", turnNumber, "agent", agent.Name)
				e.cooldown(ctx, debate, turnNumber, isLive)
				continue
			}
		}

		gateway := e.factory(agent, participant.Side)
		data, genErr := e.generateTurn(ctx, gateway, agents.TurnRequest{
			Topic:         debate.Topic,
			Side:          participant.Side,
			TurnNumber:    turnNumber,
			TeamID:        participant.TeamID,
			PreviousTurns: previous,
		}, debate.TurnTimeoutSeconds)

		switch {
		case genErr == nil:
			if safe, reason := e.filter.Check(data.Argument); !safe {
				e.recordViolationTurn(ctx, turn, reason)
				e.advance(ctx, debateID, turnNumber)
				e.suspendAgent(ctx, agent)
				slog.Warn("Turn blocked by content filter",
					"turn", turnNumber, "agent", agent.Name, "reason", reason)
			} else {
				e.recordValidatedTurn(ctx, turn, data)
				e.advance(ctx, debateID, turnNumber)
				e.autoFactcheckTurn(ctx, debateID, turn.ID, data)
				slog.Info("Turn validated",
					"turn", turnNumber, "agent", agent.Name,
					"side", participant.Side, "stance", data.Stance)

				if isLive {
					e.bus.Publish(debateID, events.Event{Type: events.EventTurnComplete, Data: map[string]any{
						"turn_number": turnNumber,
						"agent_id":    participant.AgentID.String(),
						"side":        string(participant.Side),
						"team_id":     participant.TeamID,
						"stance":      data.Stance,
						"claim":       data.Claim,
						"argument":    data.Argument,
					}})
				}
			}

		case errors.Is(genErr, context.DeadlineExceeded) && ctx.Err() == nil:
			e.recordTimeoutTurn(ctx, turn)
			e.advance(ctx, debateID, turnNumber)
			slog.Warn("Turn timed out", "turn", turnNumber, "agent", agent.Name)

		case ctx.Err() != nil:
			return ctx.Err()

		default:
			e.recordErrorTurn(ctx, turn, genErr.Error())
			e.advance(ctx, debateID, turnNumber)
			slog.Error("Turn failed", "turn", turnNumber, "agent", agent.Name, "error", genErr)
		}

		e.cooldown(ctx, debate, turnNumber, isLive)
	}

	if err := e.store.FinishDebate(ctx, debateID, models.DebateStatusCompleted); err != nil {
		return fmt.Errorf("completing debate: %w", err)
	}
	slog.Info("Debate completed", "debate_id", debateID, "topic", debate.Topic)

	if isLive {
		e.bus.Publish(debateID, events.Event{Type: events.EventDebateComplete, Data: map[string]any{
			"debate_id": debateID.String(),
		}})
	}
	return nil
}

// generateTurn runs the gateway call under the per-turn timeout.
func (e *Engine) generateTurn(ctx context.Context, gateway agents.Gateway,
	req agents.TurnRequest, timeoutSeconds int) (*agents.TurnData, error) {
	turnCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()
	return gateway.GenerateTurn(turnCtx, req)
}

func (e *Engine) cooldown(ctx context.Context, debate *models.Debate, turnNumber int, isLive bool) {
	if turnNumber >= debate.MaxTurns {
		return
	}
	if isLive {
		e.bus.Publish(debate.ID, events.Event{Type: events.EventCooldownStart, Data: map[string]any{
			"seconds":   debate.TurnCooldownSeconds,
			"next_turn": turnNumber + 1,
		}})
	}
	_ = e.sleep(ctx, time.Duration(debate.TurnCooldownSeconds)*time.Second)
}

// recordValidatedTurn persists a turn, enforcing the token limit by
// truncating oversized arguments. A tokenizer failure keeps the original
// argument rather than guessing at a cut point.
func (e *Engine) recordValidatedTurn(ctx context.Context, turn *models.Turn, data *agents.TurnData) {
	argument := data.Argument
	tokenCount := data.TokenCount

	if tokenCount > e.cfg.DefaultTokenLimit {
		truncated, count, err := tokens.Truncate(argument, e.cfg.DefaultTokenLimit)
		if err != nil {
			slog.Error("Token truncation failed, keeping original argument", "error", err)
		} else {
			slog.Warn("Turn exceeded token limit, truncated",
				"turn", turn.TurnNumber, "tokens", tokenCount, "limit", e.cfg.DefaultTokenLimit)
			argument = truncated
			tokenCount = count
		}
	}

	now := time.Now()
	turn.Status = models.TurnStatusValidated
	turn.Stance = data.Stance
	turn.Claim = data.Claim
	turn.Argument = argument
	turn.Citations = data.Citations
	turn.RebuttalTargetID = data.RebuttalTarget
	turn.TokenCount = tokenCount
	turn.SubmittedAt = &now
	turn.ValidatedAt = &now
	if err := e.store.UpdateTurn(ctx, turn); err != nil {
		slog.Error("Failed to save validated turn", "turn_id", turn.ID, "error", err)
	}
}

func (e *Engine) recordTimeoutTurn(ctx context.Context, turn *models.Turn) {
	turn.Status = models.TurnStatusTimeout
	turn.Claim = "[Agent timed out for this turn]"
	turn.Argument = "[No response received within the time limit]"
	turn.Citations = nil
	if err := e.store.UpdateTurn(ctx, turn); err != nil {
		slog.Error("Failed to save timeout turn", "turn_id", turn.ID, "error", err)
	}
}

func (e *Engine) recordViolationTurn(ctx context.Context, turn *models.Turn, reason string) {
	if reason == "" {
		reason = "blocked content"
	}
	turn.Status = models.TurnStatusFormatError
	turn.Claim = fmt.Sprintf("[Content policy violation: %s]", reason)
	turn.Argument = "[This turn was blocked due to a content policy violation]"
	turn.Citations = nil
	turn.RebuttalTargetID = nil
	if err := e.store.UpdateTurn(ctx, turn); err != nil {
		slog.Error("Failed to save violation turn", "turn_id", turn.ID, "error", err)
	}
}

func (e *Engine) recordErrorTurn(ctx context.Context, turn *models.Turn, msg string) {
	turn.Status = models.TurnStatusFormatError
	turn.Claim = "[Technical error occurred]"
	if msg != "" {
		turn.Argument = fmt.Sprintf("[Agent encountered a technical error: %s]", snippet(msg, 200))
	} else {
		turn.Argument = "[Agent encountered a technical error for this turn]"
	}
	turn.Citations = nil
	turn.RebuttalTargetID = nil
	if err := e.store.UpdateTurn(ctx, turn); err != nil {
		slog.Error("Failed to save error turn", "turn_id", turn.ID, "error", err)
	}
}

func (e *Engine) advance(ctx context.Context, debateID uuid.UUID, turnNumber int) {
	if err := e.store.SetDebateCurrentTurn(ctx, debateID, turnNumber); err != nil {
		slog.Error("Failed to advance current turn", "debate_id", debateID, "error", err)
	}
}

func (e *Engine) suspendAgent(ctx context.Context, agent *models.Agent) {
	if err := e.store.UpdateAgentStatus(ctx, agent.ID, models.AgentStatusSuspended); err != nil {
		slog.Error("Failed to suspend agent", "agent_id", agent.ID, "error", err)
	}
}

// autoFactcheckTurn enqueues background verification for a validated
// turn. The per-debate cap and the (debate, claim_hash) dedup both
// guard the queue; only a newly created request is enqueued.
func (e *Engine) autoFactcheckTurn(ctx context.Context, debateID, turnID uuid.UUID, data *agents.TurnData) {
	count, err := e.store.CountFactcheckRequests(ctx, debateID)
	if err != nil {
		slog.Error("Failed to count fact-check requests", "debate_id", debateID, "error", err)
		return
	}
	if count >= e.cfg.MaxFactchecksPerDebate {
		slog.Warn("Fact-check cap reached for debate", "debate_id", debateID)
		return
	}

	req, created, err := e.store.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
		DebateID:  &debateID,
		TurnID:    &turnID,
		ClaimHash: models.ClaimHash(data.Claim, data.Argument),
		SessionID: "auto",
	})
	if err != nil {
		slog.Error("Failed to enqueue auto fact-check", "turn_id", turnID, "error", err)
		return
	}
	if created {
		e.worker.Enqueue(req.ID)
		slog.Info("Auto fact-check enqueued", "turn_id", turnID, "request_id", req.ID)
	}
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
