package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/agonai/agon/pkg/llm"
	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

const sentimentSystemPrompt = `You are a debate analysis expert. Analyze the sentiment and tone of debate turns on two axes:

1. **Aggression** (0.0-1.0):
   - 0.0 = cooperative, conciliatory, collaborative tone
   - 0.5 = neutral, balanced tone
   - 1.0 = aggressive, confrontational, attacking tone

2. **Confidence** (0.0-1.0):
   - 0.0 = defensive, uncertain, hedging language
   - 0.5 = moderate confidence
   - 1.0 = highly confident, assertive, declarative

Respond ONLY with valid JSON matching this exact format (no markdown, no extra text):
{
  "analyses": [
    {"turn_number": 1, "aggression": 0.7, "confidence": 0.8},
    {"turn_number": 2, "aggression": 0.5, "confidence": 0.9}
  ]
}`

type sentimentPayload struct {
	Analyses []struct {
		TurnNumber int     `json:"turn_number"`
		Aggression float64 `json:"aggression"`
		Confidence float64 `json:"confidence"`
	} `json:"analyses"`
}

// SentimentAnalyzer scores the tone of a debate's validated turns with
// one model pass over the whole transcript.
type SentimentAnalyzer struct {
	client llm.Client
	model  string
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSentimentAnalyzer creates an analyzer using the given model.
func NewSentimentAnalyzer(client llm.Client, model string) *SentimentAnalyzer {
	return &SentimentAnalyzer{client: client, model: model, sleep: sleepCtx}
}

// AnalyzeTurns scores every turn. It never fails: when the model call
// or the parse goes wrong, every turn gets neutral 0.5 scores so the
// analysis stays renderable.
func (a *SentimentAnalyzer) AnalyzeTurns(ctx context.Context, turns []*models.Turn,
	sides map[uuid.UUID]models.Side) []models.SentimentEntry {

	if len(turns) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Analyze the sentiment of these debate turns:\n\n")
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "Turn %d (%s):\nClaim: %s\nArgument: %s\n",
			t.TurnNumber, sides[t.AgentID], t.Claim, t.Argument)
	}
	sb.WriteString("\n\nProvide aggression and confidence scores for each turn.")

	scores := make(map[int]struct{ aggression, confidence float64 })
	raw, err := a.completeWithRetry(ctx, llm.Request{
		Model:     a.model,
		System:    sentimentSystemPrompt,
		Prompt:    sb.String(),
		MaxTokens: 2000,
	})
	if err != nil {
		slog.Error("Sentiment analysis failed, falling back to neutral scores", "error", err)
	} else {
		var payload sentimentPayload
		repaired, rerr := jsonrepair.RepairJSON(stripCodeFence(raw))
		if rerr != nil {
			slog.Error("Failed to parse sentiment response", "snippet", snippet(raw, 200))
		} else if uerr := decodeJSON(repaired, &payload); uerr != nil {
			slog.Error("Failed to decode sentiment response", "snippet", snippet(repaired, 200))
		}
		for _, entry := range payload.Analyses {
			scores[entry.TurnNumber] = struct{ aggression, confidence float64 }{
				entry.Aggression, entry.Confidence,
			}
		}
	}

	out := make([]models.SentimentEntry, 0, len(turns))
	for _, t := range turns {
		aggression, confidence := 0.5, 0.5
		if s, ok := scores[t.TurnNumber]; ok {
			aggression, confidence = s.aggression, s.confidence
		}
		out = append(out, models.SentimentEntry{
			TurnNumber: t.TurnNumber,
			Side:       sides[t.AgentID],
			Aggression: aggression,
			Confidence: confidence,
			TokenCount: t.TokenCount,
		})
	}
	return out
}

func (a *SentimentAnalyzer) completeWithRetry(ctx context.Context, req llm.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, err := a.client.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := backoff(attempt)
		slog.Warn("Sentiment analysis call failed, retrying",
			"model", req.Model, "error", err,
			"wait", wait, "attempt", attempt+1, "max_attempts", maxAttempts)
		if err := a.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}
