package engine

import (
	"context"
	"testing"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) newTopic(t *testing.T, durationMinutes, maxComments int, agents ...*models.Agent) *models.Topic {
	t.Helper()
	ctx := context.Background()
	topic := &models.Topic{
		Title:                  "Is open source sustainable?",
		Description:            "Free-form discussion",
		DurationMinutes:        durationMinutes,
		PollingIntervalSeconds: 0,
		MaxCommentsPerAgent:    maxComments,
	}
	require.NoError(t, f.store.CreateTopic(ctx, topic))
	for _, agent := range agents {
		require.NoError(t, f.store.AddTopicParticipant(ctx, &models.TopicParticipant{
			TopicID:     topic.ID,
			AgentID:     agent.ID,
			MaxComments: maxComments,
		}))
	}
	opened, err := f.store.OpenTopic(ctx, topic.ID)
	require.NoError(t, err)
	return opened
}

func scriptedComments(responses ...func() (*agents.CommentData, error)) agents.Gateway {
	i := 0
	return &stubGateway{commentFn: func(agents.CommentRequest) (*agents.CommentData, error) {
		if i >= len(responses) {
			return nil, nil
		}
		resp := responses[i]
		i++
		return resp()
	}}
}

func commentOnce(content string, citations ...models.Citation) agents.Gateway {
	return scriptedComments(func() (*agents.CommentData, error) {
		return &agents.CommentData{Content: content, Citations: citations, TokenCount: 10}, nil
	})
}

func TestRunTopic_ClosesWhenQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addAgent(t, "alpha", models.AgentKindBuiltin,
		commentOnce("Cited position", models.Citation{URL: "https://example.com"}))
	b := f.addAgent(t, "beta", models.AgentKindBuiltin, commentOnce("Uncited position"))
	topic := f.newTopic(t, 60, 1, a, b)

	sub := f.bus.Subscribe(topic.ID)
	defer f.bus.Unsubscribe(sub)

	f.engine.RunTopic(ctx, topic.ID)

	got, err := f.store.GetTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusClosed, got.Status)

	comments, err := f.store.ListComments(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	for _, c := range comments {
		assert.NotEmpty(t, c.AgentName)
	}

	// Only the cited comment is queued for verification.
	unfinished, err := f.store.ListUnfinishedFactcheckRequests(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	require.NotNil(t, unfinished[0].TopicID)
	assert.Equal(t, topic.ID, *unfinished[0].TopicID)
	assert.Equal(t, models.ClaimHash("Cited position"), unfinished[0].ClaimHash)

	participants, err := f.store.ListTopicParticipants(ctx, topic.ID)
	require.NoError(t, err)
	for _, p := range participants {
		assert.Equal(t, 1, p.CommentCount)
	}

	var types []string
	for len(sub.C) > 0 {
		types = append(types, (<-sub.C).Type)
	}
	require.Len(t, types, 3)
	assert.Equal(t, events.EventNewComment, types[0])
	assert.Equal(t, events.EventNewComment, types[1])
	assert.Equal(t, events.EventTopicClosed, types[2])
}

func TestRunTopic_FilteredAndSkippedComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "flaky", models.AgentKindBuiltin, scriptedComments(
		func() (*agents.CommentData, error) {
			return &agents.CommentData{Content: "we should kill all opponents"}, nil
		},
		func() (*agents.CommentData, error) { return nil, nil },
		func() (*agents.CommentData, error) {
			return &agents.CommentData{Content: "A civil take instead", TokenCount: 5}, nil
		},
	))
	topic := f.newTopic(t, 60, 1, agent)

	f.engine.RunTopic(ctx, topic.ID)

	comments, err := f.store.ListComments(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "A civil take instead", comments[0].Content)

	// A dropped comment does not suspend the agent.
	got, err := f.store.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusActive, got.Status)

	closed, err := f.store.GetTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusClosed, closed.Status)
}

func TestRunTopic_ClosesOnExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "quiet", models.AgentKindBuiltin, commentOnce("never polled"))
	// Zero duration: the window is already over when the loop starts.
	topic := f.newTopic(t, 0, 3, agent)

	sub := f.bus.Subscribe(topic.ID)
	defer f.bus.Unsubscribe(sub)

	f.engine.RunTopic(ctx, topic.ID)

	got, err := f.store.GetTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)

	comments, err := f.store.ListComments(ctx, topic.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	evt := <-sub.C
	assert.Equal(t, events.EventTopicClosed, evt.Type)
}

func TestRunTopic_ClosesWithNoParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Long window, so only the quota condition can close it.
	topic := f.newTopic(t, 60, 1)

	sub := f.bus.Subscribe(topic.ID)
	defer f.bus.Unsubscribe(sub)

	f.engine.RunTopic(ctx, topic.ID)

	got, err := f.store.GetTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TopicStatusClosed, got.Status)

	evt := <-sub.C
	assert.Equal(t, events.EventTopicClosed, evt.Type)
}

func TestRunTopic_CommentErrorDoesNotAbortLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "erratic", models.AgentKindBuiltin, scriptedComments(
		func() (*agents.CommentData, error) { return nil, assert.AnError },
		func() (*agents.CommentData, error) {
			return &agents.CommentData{Content: "Recovered", TokenCount: 3}, nil
		},
	))
	topic := f.newTopic(t, 60, 1, agent)

	f.engine.RunTopic(ctx, topic.ID)

	comments, err := f.store.ListComments(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Recovered", comments[0].Content)
}
