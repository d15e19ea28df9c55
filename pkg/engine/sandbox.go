package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

// sandboxTopic is the fixed debate prompt used for validation runs.
const sandboxTopic = "AI 규제가 필요한가?"

// externalTurnOutcome records how the candidate handled one sandbox turn.
type externalTurnOutcome struct {
	data     *agents.TurnData
	timedOut bool
	errMsg   string
}

// RunSandbox validates an external agent by running a short debate
// against the built-in agent and grading the candidate's turns. The
// agent becomes active on a full pass, failed otherwise.
func (e *Engine) RunSandbox(ctx context.Context, agentID uuid.UUID) {
	agent, err := e.store.GetAgent(ctx, agentID)
	if err != nil || agent.EndpointURL == "" {
		e.saveEarlyFailure(ctx, agentID, "Agent not found or no endpoint")
		return
	}

	result := &models.SandboxResult{
		AgentID: agentID,
		Status:  models.SandboxStatusRunning,
	}
	if err := e.store.CreateSandboxResult(ctx, result); err != nil {
		slog.Error("Failed to create sandbox result", "agent_id", agentID, "error", err)
		return
	}

	var checks []models.SandboxCheck

	connectOK, connectDetail := e.checkConnectivity(ctx, agent.EndpointURL)
	checks = append(checks, models.SandboxCheck{
		Check:  models.CheckConnectivity,
		Passed: connectOK,
		Detail: connectDetail,
	})

	// An unreachable endpoint short-circuits: no debate is attempted.
	if connectOK {
		outcomes, err := e.runSandboxDebate(ctx, agent, result)
		if err != nil {
			slog.Error("Sandbox debate failed", "agent_id", agentID, "error", err)
			checks = append(checks, models.SandboxCheck{
				Check:  models.CheckJSONFormat,
				Passed: false,
				Detail: snippet(err.Error(), 200),
			})
		} else {
			checks = append(checks, evaluateOutcomes(outcomes)...)
		}
	}

	e.finalizeSandbox(ctx, result, agent, checks)
}

// checkConnectivity probes GET {endpoint}/health.
func (e *Engine) checkConnectivity(ctx context.Context, endpoint string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return false, fmt.Sprintf("Connectivity error: %s", snippet(err.Error(), 150))
	}
	resp, err := e.health.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, "Health check timed out (10s)"
		}
		return false, fmt.Sprintf("Connection failed: %s", snippet(err.Error(), 150))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, "Endpoint reachable"
	}
	return false, fmt.Sprintf("Health check returned status %d", resp.StatusCode)
}

// runSandboxDebate runs the validation debate: built-in agent on pro,
// candidate on con, alternating for the configured number of turns.
func (e *Engine) runSandboxDebate(ctx context.Context, candidate *models.Agent,
	result *models.SandboxResult) ([]externalTurnOutcome, error) {

	builtin, err := e.findBuiltinAgent(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	debate := &models.Debate{
		Topic:               sandboxTopic,
		Format:              models.Format1v1,
		Mode:                models.ModeAsync,
		MaxTurns:            e.cfg.SandboxTurns,
		TurnTimeoutSeconds:  e.cfg.DefaultTurnTimeout,
		TurnCooldownSeconds: e.cfg.DefaultTurnCooldown,
		Status:              models.DebateStatusInProgress,
		IsSandbox:           true,
		StartedAt:           &now,
	}
	if err := e.store.CreateDebate(ctx, debate); err != nil {
		return nil, fmt.Errorf("creating sandbox debate: %w", err)
	}
	for i, binding := range []struct {
		agentID uuid.UUID
		side    models.Side
	}{
		{builtin.ID, models.SidePro},
		{candidate.ID, models.SideCon},
	} {
		err := e.store.AddDebateParticipant(ctx, &models.DebateParticipant{
			DebateID:  debate.ID,
			AgentID:   binding.agentID,
			Side:      binding.side,
			TurnOrder: i,
		})
		if err != nil {
			return nil, fmt.Errorf("adding sandbox participant: %w", err)
		}
	}

	result.DebateID = &debate.ID
	if err := e.store.UpdateSandboxResult(ctx, result); err != nil {
		slog.Error("Failed to link sandbox result to debate", "error", err)
	}

	proGateway := e.factory(builtin, models.SidePro)
	conGateway := e.factory(candidate, models.SideCon)

	var previous []*models.Turn
	var outcomes []externalTurnOutcome

	for turnNumber := 1; turnNumber <= e.cfg.SandboxTurns; turnNumber++ {
		isPro := turnNumber%2 == 1
		gateway, side, agentID := conGateway, models.SideCon, candidate.ID
		if isPro {
			gateway, side, agentID = proGateway, models.SidePro, builtin.ID
		}

		turn := &models.Turn{
			DebateID:   debate.ID,
			AgentID:    agentID,
			TurnNumber: turnNumber,
			Status:     models.TurnStatusPending,
		}
		if err := e.store.CreateTurn(ctx, turn); err != nil {
			return nil, fmt.Errorf("creating sandbox turn %d: %w", turnNumber, err)
		}

		data, genErr := e.generateTurn(ctx, gateway, agents.TurnRequest{
			Topic:         sandboxTopic,
			Side:          side,
			TurnNumber:    turnNumber,
			PreviousTurns: previous,
		}, e.cfg.DefaultTurnTimeout)

		switch {
		case genErr == nil:
			e.recordValidatedTurn(ctx, turn, data)
			if !isPro {
				outcomes = append(outcomes, externalTurnOutcome{data: data})
			}
			slog.Info("Sandbox turn completed", "turn", turnNumber, "side", side)

		case errors.Is(genErr, context.DeadlineExceeded) && ctx.Err() == nil:
			e.recordTimeoutTurn(ctx, turn)
			if !isPro {
				outcomes = append(outcomes, externalTurnOutcome{timedOut: true})
			}
			slog.Warn("Sandbox turn timed out", "turn", turnNumber, "side", side)

		case ctx.Err() != nil:
			return nil, ctx.Err()

		default:
			e.recordErrorTurn(ctx, turn, genErr.Error())
			if !isPro {
				outcomes = append(outcomes, externalTurnOutcome{errMsg: snippet(genErr.Error(), 200)})
			}
			slog.Error("Sandbox turn failed", "turn", turnNumber, "side", side, "error", genErr)
		}

		saved, err := e.store.GetTurn(ctx, turn.ID)
		if err == nil && saved.Status == models.TurnStatusValidated {
			previous = append(previous, saved)
		}
	}

	if err := e.store.FinishDebate(ctx, debate.ID, models.DebateStatusCompleted); err != nil {
		slog.Error("Failed to complete sandbox debate", "debate_id", debate.ID, "error", err)
	}
	return outcomes, nil
}

// findBuiltinAgent prefers the canonical "Claude Pro" agent, falling
// back to any built-in.
func (e *Engine) findBuiltinAgent(ctx context.Context) (*models.Agent, error) {
	all, err := e.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	var fallback *models.Agent
	for _, a := range all {
		if !a.IsBuiltin() {
			continue
		}
		if a.Name == "Claude Pro" {
			return a, nil
		}
		if fallback == nil {
			fallback = a
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("no builtin agent found for sandbox debate")
}

// evaluateOutcomes grades the candidate's turns.
func evaluateOutcomes(outcomes []externalTurnOutcome) []models.SandboxCheck {
	var checks []models.SandboxCheck

	jsonOK := len(outcomes) > 0
	for _, o := range outcomes {
		if o.data == nil || o.errMsg != "" {
			jsonOK = false
			break
		}
	}
	checks = append(checks, check(models.CheckJSONFormat, jsonOK,
		"All turns returned valid JSON",
		"One or more turns failed to return valid JSON"))

	timeoutOK := true
	for _, o := range outcomes {
		if o.timedOut {
			timeoutOK = false
			break
		}
	}
	checks = append(checks, check(models.CheckTimeout, timeoutOK,
		"All turns responded within timeout",
		"One or more turns timed out"))

	tokenOK := true
	for _, o := range outcomes {
		if o.data != nil && o.data.TokenCount > 500 {
			tokenOK = false
			break
		}
	}
	checks = append(checks, check(models.CheckTokenLimit, tokenOK,
		"All turns within 500 token limit",
		"One or more turns exceeded 500 token limit"))

	hasValid := false
	citationOK := false
	stanceOK := false
	for _, o := range outcomes {
		if o.data != nil {
			hasValid = true
			break
		}
	}
	if hasValid {
		citationOK = true
		stanceOK = true
		for _, o := range outcomes {
			if o.data == nil {
				continue
			}
			if len(o.data.Citations) == 0 {
				citationOK = false
			}
			if o.data.Stance != string(models.SideCon) {
				stanceOK = false
			}
		}
	}
	checks = append(checks, check(models.CheckCitation, citationOK,
		"All turns include citations",
		"One or more turns missing citations"))
	checks = append(checks, check(models.CheckStanceConsistent, stanceOK,
		"Consistent con stance maintained",
		"Stance inconsistency detected"))

	return checks
}

func check(name string, passed bool, passDetail, failDetail string) models.SandboxCheck {
	detail := failDetail
	if passed {
		detail = passDetail
	}
	return models.SandboxCheck{Check: name, Passed: passed, Detail: detail}
}

// finalizeSandbox writes the verdict and flips the agent's status.
func (e *Engine) finalizeSandbox(ctx context.Context, result *models.SandboxResult,
	agent *models.Agent, checks []models.SandboxCheck) {

	allPassed := true
	for _, c := range checks {
		if !c.Passed {
			allPassed = false
			break
		}
	}

	now := time.Now()
	result.Checks = checks
	result.CompletedAt = &now
	result.Status = models.SandboxStatusFailed
	agentStatus := models.AgentStatusFailed
	if allPassed {
		result.Status = models.SandboxStatusPassed
		agentStatus = models.AgentStatusActive
	}

	if err := e.store.UpdateSandboxResult(ctx, result); err != nil {
		slog.Error("Failed to save sandbox result", "agent_id", agent.ID, "error", err)
	}
	if err := e.store.UpdateAgentStatus(ctx, agent.ID, agentStatus); err != nil {
		slog.Error("Failed to update agent status", "agent_id", agent.ID, "error", err)
	}
	slog.Info("Sandbox completed", "agent_id", agent.ID, "status", result.Status)
}

// saveEarlyFailure records a sandbox attempt that never got to run.
func (e *Engine) saveEarlyFailure(ctx context.Context, agentID uuid.UUID, detail string) {
	now := time.Now()
	result := &models.SandboxResult{
		AgentID:     agentID,
		Status:      models.SandboxStatusFailed,
		CompletedAt: &now,
		Checks: []models.SandboxCheck{{
			Check:  models.CheckConnectivity,
			Passed: false,
			Detail: detail,
		}},
	}
	if err := e.store.CreateSandboxResult(ctx, result); err != nil {
		slog.Error("Failed to save sandbox failure", "agent_id", agentID, "error", err)
	}
}
