package store

import (
	"context"
	"testing"

	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, s Store, name string) *models.Agent {
	t.Helper()
	agent := &models.Agent{
		Name:   name,
		Kind:   models.AgentKindBuiltin,
		Status: models.AgentStatusActive,
		Model:  "claude-sonnet-4-5-20250929",
	}
	require.NoError(t, s.CreateAgent(context.Background(), agent))
	return agent
}

func newTestDebate(t *testing.T, s Store, status models.DebateStatus) *models.Debate {
	t.Helper()
	debate := &models.Debate{
		Topic:               "Should remote work be the default?",
		Format:              models.Format1v1,
		Mode:                models.ModeAsync,
		MaxTurns:            10,
		TurnTimeoutSeconds:  120,
		TurnCooldownSeconds: 10,
		Status:              status,
	}
	require.NoError(t, s.CreateDebate(context.Background(), debate))
	return debate
}

func TestAgentLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	agent := newTestAgent(t, s, "Claude Pro")
	require.NotEqual(t, uuid.Nil, agent.ID)

	got, err := s.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Claude Pro", got.Name)
	assert.Equal(t, models.AgentStatusActive, got.Status)

	require.NoError(t, s.UpdateAgentStatus(ctx, agent.ID, models.AgentStatusSuspended))
	got, err = s.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusSuspended, got.Status)

	_, err = s.GetAgent(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAgents_CreationOrder(t *testing.T) {
	s := NewMemoryStore()

	first := newTestAgent(t, s, "first")
	second := newTestAgent(t, s, "second")

	agents, err := s.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, first.ID, agents[0].ID)
	assert.Equal(t, second.ID, agents[1].ID)
}

func TestStartDebate_OnlyFromScheduled(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusScheduled)

	started, err := s.StartDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebateStatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	// Second start must fail: the lock-and-check is what prevents a
	// double orchestrator spawn.
	_, err = s.StartDebate(ctx, debate.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFinishDebate_SetsCompletedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusInProgress)

	require.NoError(t, s.FinishDebate(ctx, debate.ID, models.DebateStatusCompleted))

	got, err := s.GetDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DebateStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestListDebateParticipants_OrderedByTurnOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusScheduled)
	pro := newTestAgent(t, s, "pro")
	con := newTestAgent(t, s, "con")

	// Insert out of order on purpose.
	require.NoError(t, s.AddDebateParticipant(ctx, &models.DebateParticipant{
		DebateID: debate.ID, AgentID: con.ID, Side: models.SideCon, TurnOrder: 1,
	}))
	require.NoError(t, s.AddDebateParticipant(ctx, &models.DebateParticipant{
		DebateID: debate.ID, AgentID: pro.ID, Side: models.SidePro, TurnOrder: 0,
	}))

	parts, err := s.ListDebateParticipants(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, pro.ID, parts[0].AgentID)
	assert.Equal(t, con.ID, parts[1].AgentID)
}

func TestCountActiveDebates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	agent := newTestAgent(t, s, "busy")

	var inProgress []*models.Debate
	for i := 0; i < 3; i++ {
		d := newTestDebate(t, s, models.DebateStatusScheduled)
		_, err := s.StartDebate(ctx, d.ID)
		require.NoError(t, err)
		require.NoError(t, s.AddDebateParticipant(ctx, &models.DebateParticipant{
			DebateID: d.ID, AgentID: agent.ID, Side: models.SidePro, TurnOrder: 0,
		}))
		inProgress = append(inProgress, d)
	}

	// A scheduled debate must not count.
	scheduled := newTestDebate(t, s, models.DebateStatusScheduled)
	require.NoError(t, s.AddDebateParticipant(ctx, &models.DebateParticipant{
		DebateID: scheduled.ID, AgentID: agent.ID, Side: models.SidePro, TurnOrder: 0,
	}))

	count, err := s.CountActiveDebates(ctx, agent.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Excluding the debate being started keeps it out of its own limit.
	count, err = s.CountActiveDebates(ctx, agent.ID, inProgress[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTurns_UniquePerSlotAndOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusInProgress)
	agent := newTestAgent(t, s, "speaker")

	for _, n := range []int{2, 1, 3} {
		turn := &models.Turn{
			DebateID:   debate.ID,
			AgentID:    agent.ID,
			TurnNumber: n,
			Status:     models.TurnStatusValidated,
		}
		require.NoError(t, s.CreateTurn(ctx, turn))
	}

	dup := &models.Turn{DebateID: debate.ID, AgentID: agent.ID, TurnNumber: 2}
	assert.ErrorIs(t, s.CreateTurn(ctx, dup), ErrAlreadyExists)

	turns, err := s.ListTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.TurnNumber)
	}
}

func TestListValidatedTurns_FiltersTerminalFailures(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusInProgress)
	agent := newTestAgent(t, s, "speaker")

	statuses := []models.TurnStatus{
		models.TurnStatusValidated,
		models.TurnStatusTimeout,
		models.TurnStatusValidated,
		models.TurnStatusFormatError,
	}
	for i, status := range statuses {
		require.NoError(t, s.CreateTurn(ctx, &models.Turn{
			DebateID: debate.ID, AgentID: agent.ID, TurnNumber: i + 1, Status: status,
		}))
	}

	validated, err := s.ListValidatedTurns(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, validated, 2)
	assert.Equal(t, 1, validated[0].TurnNumber)
	assert.Equal(t, 3, validated[1].TurnNumber)
}

func TestUpdateTurn_PreservesCopySemantics(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusInProgress)
	agent := newTestAgent(t, s, "speaker")

	turn := &models.Turn{
		DebateID:   debate.ID,
		AgentID:    agent.ID,
		TurnNumber: 1,
		Citations:  []models.Citation{{URL: "https://example.com", Title: "Example"}},
	}
	require.NoError(t, s.CreateTurn(ctx, turn))

	// Mutating the caller's slice must not leak into the store.
	turn.Citations[0].Title = "mutated"

	got, err := s.GetTurn(ctx, turn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Example", got.Citations[0].Title)
}

func TestOpenTopic_SetsWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	topic := &models.Topic{
		Title:                  "What is the future of open source?",
		DurationMinutes:        30,
		PollingIntervalSeconds: 60,
		MaxCommentsPerAgent:    5,
	}
	require.NoError(t, s.CreateTopic(ctx, topic))

	opened, err := s.OpenTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusOpen, opened.Status)
	require.NotNil(t, opened.StartedAt)
	require.NotNil(t, opened.ClosesAt)
	assert.Equal(t, 30.0, opened.ClosesAt.Sub(*opened.StartedAt).Minutes())

	_, err = s.OpenTopic(ctx, topic.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.CloseTopic(ctx, topic.ID))
	got, err := s.GetTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)
}

func TestCommentQuotaTracking(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	topic := &models.Topic{Title: "t", DurationMinutes: 10}
	require.NoError(t, s.CreateTopic(ctx, topic))
	agent := newTestAgent(t, s, "commenter")

	require.NoError(t, s.AddTopicParticipant(ctx, &models.TopicParticipant{
		TopicID: topic.ID, AgentID: agent.ID, MaxComments: 5,
	}))

	require.NoError(t, s.IncrementCommentCount(ctx, topic.ID, agent.ID))
	require.NoError(t, s.IncrementCommentCount(ctx, topic.ID, agent.ID))

	parts, err := s.ListTopicParticipants(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, 2, parts[0].CommentCount)

	err = s.IncrementCommentCount(ctx, topic.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListComments_CreationOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	topic := &models.Topic{Title: "t", DurationMinutes: 10}
	require.NoError(t, s.CreateTopic(ctx, topic))
	agent := newTestAgent(t, s, "commenter")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateComment(ctx, &models.Comment{
			TopicID: topic.ID, AgentID: agent.ID, Content: string(rune('a' + i)),
		}))
	}

	comments, err := s.ListComments(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "a", comments[0].Content)
	assert.Equal(t, "c", comments[2].Content)
}

func TestUpsertFactcheckRequest_DeduplicatesWithinRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debateID := uuid.New()
	turnID := uuid.New()
	hash := models.ClaimHash("claim", "argument")

	first, created, err := s.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
		DebateID:  &debateID,
		TurnID:    &turnID,
		ClaimHash: hash,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.RequestCount)
	assert.Equal(t, models.FactcheckStatusPending, first.Status)

	second, created, err := s.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
		DebateID:  &debateID,
		TurnID:    &turnID,
		ClaimHash: hash,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.RequestCount)

	// Same hash in a different debate is a distinct request.
	otherDebate := uuid.New()
	third, created, err := s.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
		DebateID:  &otherDebate,
		TurnID:    &turnID,
		ClaimHash: hash,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestFactcheckResult_AtMostOncePerRequest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	requestID := uuid.New()

	require.NoError(t, s.CreateFactcheckResult(ctx, &models.FactcheckResult{
		RequestID: requestID,
		Verdict:   models.VerdictVerified,
	}))

	err := s.CreateFactcheckResult(ctx, &models.FactcheckResult{
		RequestID: requestID,
		Verdict:   models.VerdictInconclusive,
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.GetFactcheckResultByRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictVerified, got.Verdict)
}

func TestListUnfinishedFactcheckRequests(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debateID := uuid.New()

	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		req, _, err := s.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
			DebateID:  &debateID,
			ClaimHash: models.ClaimHash("claim", string(rune('a'+i))),
		})
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}

	require.NoError(t, s.UpdateFactcheckStatus(ctx, ids[0], models.FactcheckStatusCompleted))
	require.NoError(t, s.UpdateFactcheckStatus(ctx, ids[1], models.FactcheckStatusProcessing))

	unfinished, err := s.ListUnfinishedFactcheckRequests(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 2)
	assert.Equal(t, ids[1], unfinished[0].ID)
	assert.Equal(t, ids[2], unfinished[1].ID)

	count, err := s.CountFactcheckRequests(ctx, debateID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSandboxResultLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	agent := newTestAgent(t, s, "candidate")

	result := &models.SandboxResult{
		AgentID: agent.ID,
		Status:  models.SandboxStatusRunning,
	}
	require.NoError(t, s.CreateSandboxResult(ctx, result))

	result.Status = models.SandboxStatusPassed
	result.Checks = []models.SandboxCheck{
		{Check: models.CheckConnectivity, Passed: true},
		{Check: models.CheckJSONFormat, Passed: true},
	}
	require.NoError(t, s.UpdateSandboxResult(ctx, result))

	got, err := s.GetSandboxResult(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SandboxStatusPassed, got.Status)
	require.Len(t, got.Checks, 2)
	assert.Equal(t, models.CheckConnectivity, got.Checks[0].Check)
}

func TestCreateReaction_OncePerSessionAndType(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusCompleted)
	agent := newTestAgent(t, s, "speaker")
	turn := &models.Turn{DebateID: debate.ID, AgentID: agent.ID, TurnNumber: 1}
	require.NoError(t, s.CreateTurn(ctx, turn))

	require.NoError(t, s.CreateReaction(ctx, &models.Reaction{
		TurnID: turn.ID, Type: models.ReactionLike, SessionID: "viewer-1",
	}))
	err := s.CreateReaction(ctx, &models.Reaction{
		TurnID: turn.ID, Type: models.ReactionLike, SessionID: "viewer-1",
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// Another type or another session is a fresh vote.
	require.NoError(t, s.CreateReaction(ctx, &models.Reaction{
		TurnID: turn.ID, Type: models.ReactionLogicError, SessionID: "viewer-1",
	}))
	require.NoError(t, s.CreateReaction(ctx, &models.Reaction{
		TurnID: turn.ID, Type: models.ReactionLike, SessionID: "viewer-2",
	}))

	counts, err := s.CountReactionsByDebate(ctx, debate.ID)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[turn.ID][models.ReactionLike])
	assert.Equal(t, 1, counts[turn.ID][models.ReactionLogicError])

	// Reactions on another debate's turns stay out of the counts.
	other, err := s.CountReactionsByDebate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpsertAnalysisResult_OneRowPerDebate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	debate := newTestDebate(t, s, models.DebateStatusCompleted)

	_, err := s.GetAnalysisResultByDebate(ctx, debate.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &models.AnalysisResult{
		DebateID: debate.ID,
		SentimentData: []models.SentimentEntry{
			{TurnNumber: 1, Side: models.SidePro, Aggression: 0.4, Confidence: 0.9},
		},
	}
	require.NoError(t, s.UpsertAnalysisResult(ctx, first))

	second := &models.AnalysisResult{
		DebateID: debate.ID,
		SentimentData: []models.SentimentEntry{
			{TurnNumber: 1, Side: models.SidePro, Aggression: 0.6, Confidence: 0.7},
			{TurnNumber: 2, Side: models.SideCon, Aggression: 0.5, Confidence: 0.5},
		},
	}
	require.NoError(t, s.UpsertAnalysisResult(ctx, second))

	got, err := s.GetAnalysisResultByDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	require.Len(t, got.SentimentData, 2)
	assert.InDelta(t, 0.6, got.SentimentData[0].Aggression, 0.001)
}
