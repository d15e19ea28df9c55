package models

import (
	"time"

	"github.com/google/uuid"
)

// Audience reaction types.
const (
	ReactionLike       = "like"
	ReactionLogicError = "logic_error"
)

// Reaction is one audience vote on a turn. A viewer session reacts to a
// turn at most once per type.
type Reaction struct {
	ID        uuid.UUID `json:"id"`
	TurnID    uuid.UUID `json:"turn_id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SentimentEntry scores one turn's tone on two 0.0 to 1.0 axes:
// aggression (cooperative to confrontational) and confidence (hedging
// to assertive).
type SentimentEntry struct {
	TurnNumber int     `json:"turn_number"`
	Side       Side    `json:"side"`
	Aggression float64 `json:"aggression"`
	Confidence float64 `json:"confidence"`
	TokenCount int     `json:"token_count"`
}

// SourceTypeCounts buckets citation URLs by source kind.
type SourceTypeCounts struct {
	Academic   int `json:"academic"`
	News       int `json:"news"`
	Wiki       int `json:"wiki"`
	Government int `json:"government"`
	Other      int `json:"other"`
}

// SideCitationStats aggregates one side's citation usage across its
// validated turns.
type SideCitationStats struct {
	Total         int              `json:"total"`
	UniqueSources int              `json:"unique_sources"`
	SourceTypes   SourceTypeCounts `json:"source_types"`
}

// CitationStats holds the per-side citation aggregates of a debate.
type CitationStats struct {
	Pro SideCitationStats `json:"pro"`
	Con SideCitationStats `json:"con"`
}

// AnalysisResult is the stored sentiment and citation analysis of a
// debate. One row per debate; regeneration overwrites it in place.
type AnalysisResult struct {
	ID            uuid.UUID        `json:"id"`
	DebateID      uuid.UUID        `json:"debate_id"`
	SentimentData []SentimentEntry `json:"sentiment_data"`
	CitationStats *CitationStats   `json:"citation_stats"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
