package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/config"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/factcheck"
	"github.com/agonai/agon/pkg/filter"
	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway scripts agent behavior per test.
type stubGateway struct {
	turnFn    func(req agents.TurnRequest) (*agents.TurnData, error)
	commentFn func(req agents.CommentRequest) (*agents.CommentData, error)
}

func (g *stubGateway) GenerateTurn(_ context.Context, req agents.TurnRequest) (*agents.TurnData, error) {
	return g.turnFn(req)
}

func (g *stubGateway) GenerateComment(_ context.Context, req agents.CommentRequest) (*agents.CommentData, error) {
	return g.commentFn(req)
}

type fixture struct {
	engine   *Engine
	store    *store.MemoryStore
	bus      *events.Bus
	worker   *factcheck.Worker
	cfg      *config.Config
	gateways map[uuid.UUID]agents.Gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	bus := events.NewBus()
	cfg := &config.Config{
		DefaultTurnTimeout:           5,
		DefaultTurnCooldown:          0,
		DefaultMaxTurns:              10,
		DefaultTokenLimit:            500,
		SandboxTurns:                 2,
		MaxConcurrentDebatesPerAgent: 3,
		MaxFactchecksPerDebate:       20,
	}
	worker := factcheck.NewWorker(s, factcheck.NewReferee(nil, "model-a", 0))

	f := &fixture{
		store:    s,
		bus:      bus,
		worker:   worker,
		cfg:      cfg,
		gateways: make(map[uuid.UUID]agents.Gateway),
	}
	factory := func(agent *models.Agent, _ models.Side) agents.Gateway {
		gw, ok := f.gateways[agent.ID]
		require.True(t, ok, "no gateway scripted for agent %s", agent.Name)
		return gw
	}
	f.engine = New(s, bus, filter.New(), worker, factory, cfg)
	f.engine.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func (f *fixture) addAgent(t *testing.T, name string, kind models.AgentKind, gw agents.Gateway) *models.Agent {
	t.Helper()
	agent := &models.Agent{Name: name, Kind: kind, Status: models.AgentStatusActive}
	require.NoError(t, f.store.CreateAgent(context.Background(), agent))
	if gw != nil {
		f.gateways[agent.ID] = gw
	}
	return agent
}

func (f *fixture) newDebate(t *testing.T, mode models.DebateMode, maxTurns int, agents ...*models.Agent) *models.Debate {
	t.Helper()
	ctx := context.Background()
	debate := &models.Debate{
		Topic:               "Should remote work be the default?",
		Format:              models.Format1v1,
		Mode:                mode,
		MaxTurns:            maxTurns,
		TurnTimeoutSeconds:  5,
		TurnCooldownSeconds: 0,
	}
	require.NoError(t, f.store.CreateDebate(ctx, debate))
	sides := []models.Side{models.SidePro, models.SideCon}
	for i, agent := range agents {
		require.NoError(t, f.store.AddDebateParticipant(ctx, &models.DebateParticipant{
			DebateID:  debate.ID,
			AgentID:   agent.ID,
			Side:      sides[i%2],
			TurnOrder: i,
		}))
	}
	_, err := f.store.StartDebate(ctx, debate.ID)
	require.NoError(t, err)
	return debate
}

func validTurn(side models.Side, n int) *agents.TurnData {
	return &agents.TurnData{
		Stance:   string(side),
		Claim:    fmt.Sprintf("claim %d", n),
		Argument: fmt.Sprintf("argument %d from %s", n, side),
		Citations: []models.Citation{
			{URL: "https://example.com", Title: "Source", Quote: "quote"},
		},
		TokenCount: 42,
	}
}

func scriptedTurns(side models.Side) agents.Gateway {
	return &stubGateway{turnFn: func(req agents.TurnRequest) (*agents.TurnData, error) {
		return validTurn(side, req.TurnNumber), nil
	}}
}

func TestRunDebate_Completes1v1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "con", models.AgentKindBuiltin, scriptedTurns(models.SideCon))
	debate := f.newDebate(t, models.ModeAsync, 4, pro, con)

	f.engine.RunDebate(ctx, debate.ID)

	got, err := f.store.GetDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebateStatusCompleted, got.Status)
	assert.Equal(t, 4, got.CurrentTurn)
	assert.NotNil(t, got.CompletedAt)

	turns, err := f.store.ListValidatedTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	// Round-robin: pro speaks odd turns, con even.
	assert.Equal(t, pro.ID, turns[0].AgentID)
	assert.Equal(t, con.ID, turns[1].AgentID)
	assert.Equal(t, pro.ID, turns[2].AgentID)

	// Each distinct claim gets one fact-check request.
	count, err := f.store.CountFactcheckRequests(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRunDebate_TimeoutTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "con", models.AgentKindExternal, &stubGateway{
		turnFn: func(agents.TurnRequest) (*agents.TurnData, error) {
			return nil, context.DeadlineExceeded
		},
	})
	debate := f.newDebate(t, models.ModeAsync, 2, pro, con)

	f.engine.RunDebate(ctx, debate.ID)

	turns, err := f.store.ListTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.TurnStatusValidated, turns[0].Status)
	assert.Equal(t, models.TurnStatusTimeout, turns[1].Status)
	assert.Equal(t, "[Agent timed out for this turn]", turns[1].Claim)
	assert.Equal(t, "[No response received within the time limit]", turns[1].Argument)

	// The debate itself still completes.
	got, err := f.store.GetDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebateStatusCompleted, got.Status)
}

func TestRunDebate_ErrorTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "con", models.AgentKindExternal, &stubGateway{
		turnFn: func(agents.TurnRequest) (*agents.TurnData, error) {
			return nil, fmt.Errorf("endpoint exploded")
		},
	})
	debate := f.newDebate(t, models.ModeAsync, 2, pro, con)

	f.engine.RunDebate(ctx, debate.ID)

	turns, err := f.store.ListTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.TurnStatusFormatError, turns[1].Status)
	assert.Equal(t, "[Technical error occurred]", turns[1].Claim)
	assert.Contains(t, turns[1].Argument, "endpoint exploded")
}

func TestRunDebate_ContentViolationSuspendsAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "rogue", models.AgentKindExternal, &stubGateway{
		turnFn: func(req agents.TurnRequest) (*agents.TurnData, error) {
			data := validTurn(models.SideCon, req.TurnNumber)
			data.Argument = "we should kill all dissenters"
			return data, nil
		},
	})
	debate := f.newDebate(t, models.ModeAsync, 2, pro, con)

	f.engine.RunDebate(ctx, debate.ID)

	turns, err := f.store.ListTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.TurnStatusFormatError, turns[1].Status)
	assert.Contains(t, turns[1].Claim, "[Content policy violation:")
	assert.Equal(t, "[This turn was blocked due to a content policy violation]", turns[1].Argument)

	suspended, err := f.store.GetAgent(ctx, con.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusSuspended, suspended.Status)
}

func TestRunDebate_FactcheckDeduplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Both agents return the identical claim and argument.
	same := func(req agents.TurnRequest) (*agents.TurnData, error) {
		return &agents.TurnData{
			Stance:     string(req.Side),
			Claim:      "shared claim",
			Argument:   "shared argument",
			Citations:  []models.Citation{{URL: "https://example.com"}},
			TokenCount: 4,
		}, nil
	}
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, &stubGateway{turnFn: same})
	con := f.addAgent(t, "con", models.AgentKindBuiltin, &stubGateway{turnFn: same})
	debate := f.newDebate(t, models.ModeAsync, 2, pro, con)

	f.engine.RunDebate(ctx, debate.ID)

	count, err := f.store.CountFactcheckRequests(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unfinished, err := f.store.ListUnfinishedFactcheckRequests(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, 2, unfinished[0].RequestCount)
}

func TestRunDebate_FactcheckCap(t *testing.T) {
	f := newFixture(t)
	f.cfg.MaxFactchecksPerDebate = 2
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "con", models.AgentKindBuiltin, scriptedTurns(models.SideCon))
	debate := f.newDebate(t, models.ModeAsync, 4, pro, con)

	f.engine.RunDebate(ctx, debate.ID)

	count, err := f.store.CountFactcheckRequests(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunDebate_ConcurrentLimitSkipsExternalTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	busy := f.addAgent(t, "busy", models.AgentKindExternal, scriptedTurns(models.SideCon))

	// The external agent already sits in three running debates.
	for i := 0; i < 3; i++ {
		other := f.newDebate(t, models.ModeAsync, 2, pro, busy)
		_ = other
	}
	debate := f.newDebate(t, models.ModeAsync, 2, pro, busy)

	f.engine.RunDebate(ctx, debate.ID)

	turns, err := f.store.ListTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.TurnStatusFormatError, turns[1].Status)
	assert.Contains(t, turns[1].Argument, "Concurrent debate limit exceeded (max 3)")
}

func TestRunDebate_LiveEventOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "con", models.AgentKindBuiltin, scriptedTurns(models.SideCon))
	debate := f.newDebate(t, models.ModeLive, 2, pro, con)

	sub := f.bus.Subscribe(debate.ID)
	defer f.bus.Unsubscribe(sub)

	f.engine.RunDebate(ctx, debate.ID)

	want := []string{
		events.EventTurnStart,
		events.EventTurnComplete,
		events.EventCooldownStart,
		events.EventTurnStart,
		events.EventTurnComplete,
		events.EventDebateComplete,
	}
	for i, expected := range want {
		select {
		case evt := <-sub.C:
			assert.Equal(t, expected, evt.Type, "event %d", i)
		default:
			t.Fatalf("missing event %d (%s)", i, expected)
		}
	}
	assert.Len(t, sub.C, 0)
}

func TestRunDebate_AsyncModePublishesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pro := f.addAgent(t, "pro", models.AgentKindBuiltin, scriptedTurns(models.SidePro))
	con := f.addAgent(t, "con", models.AgentKindBuiltin, scriptedTurns(models.SideCon))
	debate := f.newDebate(t, models.ModeAsync, 2, pro, con)

	sub := f.bus.Subscribe(debate.ID)
	defer f.bus.Unsubscribe(sub)

	f.engine.RunDebate(ctx, debate.ID)
	assert.Len(t, sub.C, 0)
}
