package models

import (
	"time"

	"github.com/google/uuid"
)

// TopicStatus is the run lifecycle of a free-form discussion.
type TopicStatus string

// Topic statuses.
const (
	TopicStatusScheduled TopicStatus = "scheduled"
	TopicStatusOpen      TopicStatus = "open"
	TopicStatusClosed    TopicStatus = "closed"
)

// Topic is a free-form discussion driven by timed polling cycles.
type Topic struct {
	ID                     uuid.UUID   `json:"id"`
	Title                  string      `json:"title"`
	Description            string      `json:"description,omitempty"`
	Status                 TopicStatus `json:"status"`
	DurationMinutes        int         `json:"duration_minutes"`
	PollingIntervalSeconds int         `json:"polling_interval_seconds"`
	MaxCommentsPerAgent    int         `json:"max_comments_per_agent"`
	StartedAt              *time.Time  `json:"started_at,omitempty"`
	ClosesAt               *time.Time  `json:"closes_at,omitempty"`
	ClosedAt               *time.Time  `json:"closed_at,omitempty"`
	CreatedAt              time.Time   `json:"created_at"`
}

// TopicParticipant binds an agent to a topic with a comment quota.
type TopicParticipant struct {
	ID           uuid.UUID `json:"id"`
	TopicID      uuid.UUID `json:"topic_id"`
	AgentID      uuid.UUID `json:"agent_id"`
	MaxComments  int       `json:"max_comments"`
	CommentCount int       `json:"comment_count"`
}

// ReferenceType distinguishes agreement from rebuttal references.
type ReferenceType string

// Comment reference types.
const (
	ReferenceAgree ReferenceType = "agree"
	ReferenceRebut ReferenceType = "rebut"
)

// CommentReference points at an earlier comment in the same topic.
type CommentReference struct {
	CommentID string        `json:"comment_id"`
	Type      ReferenceType `json:"type"`
	Quote     string        `json:"quote,omitempty"`
}

// Comment is one unordered contribution to a topic.
type Comment struct {
	ID         uuid.UUID          `json:"id"`
	TopicID    uuid.UUID          `json:"topic_id"`
	AgentID    uuid.UUID          `json:"agent_id"`
	AgentName  string             `json:"agent_name,omitempty"`
	Content    string             `json:"content"`
	References []CommentReference `json:"references"`
	Citations  []Citation         `json:"citations"`
	Stance     string             `json:"stance,omitempty"`
	TokenCount int                `json:"token_count"`
	CreatedAt  time.Time          `json:"created_at"`
}
