package agents

import (
	"context"
	"testing"
	"time"

	"github.com/agonai/agon/pkg/llm"
	"github.com/agonai/agon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays canned responses per call.
type scriptedClient struct {
	responses []scriptedResponse
	requests  []llm.Request
}

type scriptedResponse struct {
	text string
	err  error
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return "", &llm.StatusError{StatusCode: 500, Body: "exhausted"}
	}
	next := c.responses[0]
	c.responses = c.responses[1:]
	return next.text, next.err
}

func newTestBuiltin(client llm.Client, chain ...string) *Builtin {
	agent := &models.Agent{Name: "Claude Pro", Kind: models.AgentKindBuiltin}
	b := NewBuiltin(agent, models.SidePro, chain, client)
	b.sleep = func(context.Context, time.Duration) error { return nil }
	return b
}

const validTurnJSON = `{"stance": "pro", "claim": "c", "argument": "one two three",
	"citations": [{"url": "https://example.com", "title": "t", "quote": "q"}]}`

func TestBuiltinGenerateTurn(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: validTurnJSON}}}
	b := newTestBuiltin(client, "model-a")

	data, err := b.GenerateTurn(context.Background(), TurnRequest{
		Topic:      "Remote work",
		Side:       models.SidePro,
		TurnNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "pro", data.Stance)
	assert.Positive(t, data.TokenCount)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "model-a", req.Model)
	assert.Contains(t, req.System, "argue for the pro side")
	assert.Contains(t, req.Prompt, "(No previous turns)")
	assert.NotContains(t, req.System, "Team")
}

func TestBuiltinGenerateTurn_TeamContext(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: validTurnJSON}}}
	b := newTestBuiltin(client, "model-a")

	prev := []*models.Turn{
		{TurnNumber: 1, Stance: "pro", Claim: "team claim", Argument: "a"},
		{TurnNumber: 2, Stance: "con", Claim: "opp claim", Argument: "b"},
	}
	_, err := b.GenerateTurn(context.Background(), TurnRequest{
		Topic:         "Remote work",
		Side:          models.SidePro,
		TurnNumber:    3,
		TeamID:        "A",
		PreviousTurns: prev,
	})
	require.NoError(t, err)

	req := client.requests[0]
	assert.Contains(t, req.System, "You are on Team A")
	assert.Contains(t, req.Prompt, "[YOUR_TEAM Turn 1]")
	assert.Contains(t, req.Prompt, "[OPPONENT_TURN Turn 2]")
}

func TestBuiltinRetry_TransientThenSuccess(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: &llm.StatusError{StatusCode: 500}},
		{err: &llm.StatusError{StatusCode: 503}},
		{text: validTurnJSON},
	}}
	b := newTestBuiltin(client, "model-a")

	_, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: models.SidePro, TurnNumber: 1})
	require.NoError(t, err)
	assert.Len(t, client.requests, 3)
}

func TestBuiltinRetry_NonRetryableSurfacesImmediately(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: &llm.StatusError{StatusCode: 400, Body: "bad request"}},
	}}
	b := newTestBuiltin(client, "model-a", "model-b")

	_, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: models.SidePro, TurnNumber: 1})
	require.Error(t, err)
	assert.Len(t, client.requests, 1)
}

func TestBuiltinFallback_OnPersistentOverload(t *testing.T) {
	// model-a stays overloaded through all retries, model-b answers.
	responses := make([]scriptedResponse, 0, maxAttempts+1)
	for i := 0; i < maxAttempts; i++ {
		responses = append(responses, scriptedResponse{err: &llm.StatusError{StatusCode: 529}})
	}
	responses = append(responses, scriptedResponse{text: validTurnJSON})
	client := &scriptedClient{responses: responses}
	b := newTestBuiltin(client, "model-a", "model-b")

	_, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: models.SidePro, TurnNumber: 1})
	require.NoError(t, err)

	require.Len(t, client.requests, maxAttempts+1)
	assert.Equal(t, "model-a", client.requests[maxAttempts-1].Model)
	assert.Equal(t, "model-b", client.requests[maxAttempts].Model)
}

func TestBuiltinFallback_AllModelsExhausted(t *testing.T) {
	responses := make([]scriptedResponse, 0, maxAttempts*2)
	for i := 0; i < maxAttempts*2; i++ {
		responses = append(responses, scriptedResponse{err: &llm.StatusError{StatusCode: 429}})
	}
	client := &scriptedClient{responses: responses}
	b := newTestBuiltin(client, "model-a", "model-b")

	_, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: models.SidePro, TurnNumber: 1})
	require.Error(t, err)

	var statusErr *llm.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 429, statusErr.StatusCode)
	assert.Len(t, client.requests, maxAttempts*2)
}

func TestBuiltinGenerateComment(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: `{"content": "A new angle on this.", "citations": [], "stance": "neutral"}`},
	}}
	b := newTestBuiltin(client, "model-a")

	data, err := b.GenerateComment(context.Background(), CommentRequest{
		TopicTitle: "Open source sustainability",
		Remaining:  3,
	})
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "A new angle on this.", data.Content)
	assert.Positive(t, data.TokenCount)

	req := client.requests[0]
	assert.Contains(t, req.System, "Claude Pro")
	assert.Contains(t, req.System, "You have 3 comments remaining")
	assert.Contains(t, req.Prompt, "(No comments yet)")
	assert.Contains(t, req.Prompt, "(No description)")
}

func TestBuiltinGenerateComment_Skip(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: `{"skip": true}`}}}
	b := newTestBuiltin(client, "model-a")

	data, err := b.GenerateComment(context.Background(), CommentRequest{TopicTitle: "t", Remaining: 1})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		d := backoff(attempt)
		base := time.Duration(1<<(attempt+1)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
}
