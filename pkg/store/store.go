// Package store is the persistence collaborator for the orchestration
// core: transactional create/update/read over the domain entities, a
// row-level lock on run start, and the unique constraints that back
// fact-check deduplication and at-most-once result creation.
package store

import (
	"context"
	"errors"

	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint was hit. For
	// fact-check results this is an expected, handled failure
	// (at-most-once creation under at-least-once processing).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition indicates the row is not in the status the
	// transition requires (e.g. starting a debate twice).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the persistence contract the orchestrators, the fact-check
// worker, and the API depend on.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	ListAgents(ctx context.Context) ([]*models.Agent, error)
	UpdateAgentStatus(ctx context.Context, id uuid.UUID, status models.AgentStatus) error

	// Debates
	CreateDebate(ctx context.Context, debate *models.Debate) error
	GetDebate(ctx context.Context, id uuid.UUID) (*models.Debate, error)
	// StartDebate transitions scheduled → in_progress under a row lock
	// so concurrent start requests cannot double-spawn an orchestrator.
	StartDebate(ctx context.Context, id uuid.UUID) (*models.Debate, error)
	SetDebateCurrentTurn(ctx context.Context, id uuid.UUID, turn int) error
	// FinishDebate writes a terminal status and completed_at.
	FinishDebate(ctx context.Context, id uuid.UUID, status models.DebateStatus) error
	// ListDebates returns all debates, newest first.
	ListDebates(ctx context.Context) ([]*models.Debate, error)
	AddDebateParticipant(ctx context.Context, p *models.DebateParticipant) error
	// ListDebateParticipants returns participants ordered by turn_order.
	ListDebateParticipants(ctx context.Context, debateID uuid.UUID) ([]*models.DebateParticipant, error)
	// CountActiveDebates counts in_progress debates (other than exclude)
	// in which the agent participates.
	CountActiveDebates(ctx context.Context, agentID, exclude uuid.UUID) (int, error)

	// Turns
	CreateTurn(ctx context.Context, turn *models.Turn) error
	GetTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error)
	UpdateTurn(ctx context.Context, turn *models.Turn) error
	// ListTurns returns all turns of a debate ordered by turn_number.
	ListTurns(ctx context.Context, debateID uuid.UUID) ([]*models.Turn, error)
	ListValidatedTurns(ctx context.Context, debateID uuid.UUID) ([]*models.Turn, error)

	// Topics
	CreateTopic(ctx context.Context, topic *models.Topic) error
	GetTopic(ctx context.Context, id uuid.UUID) (*models.Topic, error)
	// OpenTopic transitions scheduled → open under a row lock, setting
	// started_at and closes_at from duration_minutes.
	OpenTopic(ctx context.Context, id uuid.UUID) (*models.Topic, error)
	CloseTopic(ctx context.Context, id uuid.UUID) error
	// ListTopics returns all topics, newest first.
	ListTopics(ctx context.Context) ([]*models.Topic, error)
	AddTopicParticipant(ctx context.Context, p *models.TopicParticipant) error
	ListTopicParticipants(ctx context.Context, topicID uuid.UUID) ([]*models.TopicParticipant, error)
	IncrementCommentCount(ctx context.Context, topicID, agentID uuid.UUID) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	// ListComments returns a topic's comments ordered by created_at.
	ListComments(ctx context.Context, topicID uuid.UUID) ([]*models.Comment, error)

	// Reactions
	// CreateReaction returns ErrAlreadyExists when the session already
	// reacted to the turn with the same type.
	CreateReaction(ctx context.Context, reaction *models.Reaction) error
	// CountReactionsByDebate returns reaction counts for a debate's
	// turns, grouped by turn id and reaction type.
	CountReactionsByDebate(ctx context.Context, debateID uuid.UUID) (map[uuid.UUID]map[string]int, error)

	// Analysis
	// UpsertAnalysisResult inserts the analysis for a debate, or replaces
	// the sentiment and citation data of an existing row.
	UpsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) error
	GetAnalysisResultByDebate(ctx context.Context, debateID uuid.UUID) (*models.AnalysisResult, error)

	// Fact-checks
	// UpsertFactcheckRequest inserts the request; when a request with
	// the same (run, claim_hash) already exists it increments that row's
	// request_count instead. Returns the canonical row and whether a
	// new one was created.
	UpsertFactcheckRequest(ctx context.Context, req *models.FactcheckRequest) (*models.FactcheckRequest, bool, error)
	GetFactcheckRequest(ctx context.Context, id uuid.UUID) (*models.FactcheckRequest, error)
	UpdateFactcheckStatus(ctx context.Context, id uuid.UUID, status models.FactcheckStatus) error
	// ListUnfinishedFactcheckRequests returns requests with status in
	// {pending, processing} in creation order (startup recovery).
	ListUnfinishedFactcheckRequests(ctx context.Context) ([]*models.FactcheckRequest, error)
	CountFactcheckRequests(ctx context.Context, debateID uuid.UUID) (int, error)
	// CreateFactcheckResult returns ErrAlreadyExists when a result for
	// the same request already exists.
	CreateFactcheckResult(ctx context.Context, result *models.FactcheckResult) error
	GetFactcheckResultByRequest(ctx context.Context, requestID uuid.UUID) (*models.FactcheckResult, error)
	GetFactcheckResultByTurn(ctx context.Context, turnID uuid.UUID) (*models.FactcheckResult, error)
	// ListFactcheckResultsByDebate / ByTopic return results joined through
	// their requests, oldest first.
	ListFactcheckResultsByDebate(ctx context.Context, debateID uuid.UUID) ([]*models.FactcheckResult, error)
	ListFactcheckResultsByTopic(ctx context.Context, topicID uuid.UUID) ([]*models.FactcheckResult, error)

	// Sandbox
	CreateSandboxResult(ctx context.Context, result *models.SandboxResult) error
	UpdateSandboxResult(ctx context.Context, result *models.SandboxResult) error
	GetSandboxResult(ctx context.Context, id uuid.UUID) (*models.SandboxResult, error)
	// LatestSandboxResult returns the most recent validation attempt for
	// an agent.
	LatestSandboxResult(ctx context.Context, agentID uuid.UUID) (*models.SandboxResult, error)
}
