package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// FactcheckStatus is the processing state of a fact-check request. The
// worker exclusively owns transitions after creation.
type FactcheckStatus string

// Fact-check request statuses.
const (
	FactcheckStatusPending    FactcheckStatus = "pending"
	FactcheckStatusProcessing FactcheckStatus = "processing"
	FactcheckStatusCompleted  FactcheckStatus = "completed"
	FactcheckStatusFailed     FactcheckStatus = "failed"
)

// Verdict is the categorical outcome of claim verification.
type Verdict string

// Fact-check verdicts.
const (
	VerdictVerified           Verdict = "verified"
	VerdictSourceInaccessible Verdict = "source_inaccessible"
	VerdictSourceMismatch     Verdict = "source_mismatch"
	VerdictInconclusive       Verdict = "inconclusive"
)

// FactcheckRequest is a durable queue entry keyed by (run, claim_hash).
// Exactly one of TurnID / CommentID is set; the matching run id
// (DebateID / TopicID) scopes deduplication.
type FactcheckRequest struct {
	ID           uuid.UUID       `json:"id"`
	DebateID     *uuid.UUID      `json:"debate_id,omitempty"`
	TopicID      *uuid.UUID      `json:"topic_id,omitempty"`
	TurnID       *uuid.UUID      `json:"turn_id,omitempty"`
	CommentID    *uuid.UUID      `json:"comment_id,omitempty"`
	ClaimHash    string          `json:"claim_hash"`
	Status       FactcheckStatus `json:"status"`
	RequestCount int             `json:"request_count"`
	SessionID    string          `json:"session_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CitationCheck is the per-citation outcome of referee verification.
type CitationCheck struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Accessible   bool   `json:"accessible"`
	ContentMatch *bool  `json:"content_match"`
	Explanation  string `json:"explanation,omitempty"`
}

// FactcheckDetails is the free-form result payload stored as JSON.
type FactcheckDetails struct {
	CitationResults  []CitationCheck `json:"citation_results,omitempty"`
	LogicExplanation string          `json:"logic_explanation,omitempty"`
	Reason           string          `json:"reason,omitempty"`
}

// FactcheckResult is the single verdict produced for a completed request.
type FactcheckResult struct {
	ID                 uuid.UUID        `json:"id"`
	RequestID          uuid.UUID        `json:"request_id"`
	TurnID             *uuid.UUID       `json:"turn_id,omitempty"`
	CommentID          *uuid.UUID       `json:"comment_id,omitempty"`
	Verdict            Verdict          `json:"verdict"`
	CitationURL        string           `json:"citation_url,omitempty"`
	CitationAccessible *bool            `json:"citation_accessible"`
	ContentMatch       *bool            `json:"content_match"`
	LogicValid         *bool            `json:"logic_valid"`
	Details            FactcheckDetails `json:"details"`
	CreatedAt          time.Time        `json:"created_at"`
}

// ClaimHash returns the dedup key for a claim within a run:
// sha256 over the concatenated parts, hex-encoded, first 64 characters.
func ClaimHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:64]
}
