package agents

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

// parseErrorURL marks auto-generated fallback citations.
const parseErrorURL = "https://error.agonai.dev"

var trailingCommaRE = regexp.MustCompile(`,\s*([}\]])`)

type turnPayload struct {
	Stance         string            `json:"stance"`
	Claim          string            `json:"claim"`
	Argument       string            `json:"argument"`
	Citations      []models.Citation `json:"citations"`
	RebuttalTarget string            `json:"rebuttal_target"`
}

type commentPayload struct {
	Skip       bool                      `json:"skip"`
	Content    string                    `json:"content"`
	References []models.CommentReference `json:"references"`
	Citations  []models.Citation         `json:"citations"`
	Stance     string                    `json:"stance"`
}

// stripCodeFence removes a wrapping markdown code block, which models
// emit despite instructions.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	text = strings.Join(lines[1:], "\n")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// decodeJSON tries the text as-is, then with trailing commas removed.
func decodeJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	cleaned := trailingCommaRE.ReplaceAllString(text, "$1")
	return json.Unmarshal([]byte(cleaned), v)
}

// ParseTurn parses a model turn response. It never fails: an
// unparseable response becomes a placeholder turn carrying the raw text
// so the debate can proceed.
func ParseTurn(raw string, side models.Side) *TurnData {
	text := stripCodeFence(raw)

	var payload turnPayload
	if err := decodeJSON(text, &payload); err != nil {
		slog.Error("Failed to parse agent turn response", "snippet", snippet(text, 200))
		return &TurnData{
			Stance:   string(side),
			Claim:    "[Parse error - auto-generated response]",
			Argument: snippet(text, 400),
			Citations: []models.Citation{{
				URL:   parseErrorURL,
				Title: "Parse Error",
				Quote: "Agent response could not be parsed as valid JSON",
			}},
		}
	}

	return &TurnData{
		Stance:         payload.Stance,
		Claim:          payload.Claim,
		Argument:       payload.Argument,
		Citations:      payload.Citations,
		RebuttalTarget: parseRebuttalTarget(payload.RebuttalTarget),
	}
}

// parseRebuttalTarget accepts only UUID-shaped values. Models sometimes
// return text descriptions here; those are dropped.
func parseRebuttalTarget(raw string) *uuid.UUID {
	if len(raw) < 32 || len(raw) > 36 {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// ParseComment parses a model comment response. A skip directive, empty
// content, or an unparseable response all yield nil (the agent sits out
// the cycle).
func ParseComment(raw string) *CommentData {
	text := stripCodeFence(raw)

	var payload commentPayload
	if err := decodeJSON(text, &payload); err != nil {
		slog.Error("Failed to parse agent comment response", "snippet", snippet(text, 200))
		return nil
	}
	if payload.Skip || payload.Content == "" {
		return nil
	}

	return &CommentData{
		Content:    payload.Content,
		References: payload.References,
		Citations:  payload.Citations,
		Stance:     payload.Stance,
	}
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
