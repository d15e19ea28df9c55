package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns pool lifecycle.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// ---- Agents ----

func (s *PostgresStore) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, name, kind, status, endpoint_url, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		agent.ID, agent.Name, agent.Kind, agent.Status, agent.EndpointURL, agent.Model, agent.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, kind, status, endpoint_url, model, created_at
		FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func (s *PostgresStore) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, kind, status, endpoint_url, model, created_at
		FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateAgentStatus(ctx context.Context, id uuid.UUID, status models.AgentStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE agents SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating agent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var a models.Agent
	err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.Status, &a.EndpointURL, &a.Model, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}
	return &a, nil
}

// ---- Debates ----

func (s *PostgresStore) CreateDebate(ctx context.Context, debate *models.Debate) error {
	if debate.ID == uuid.Nil {
		debate.ID = uuid.New()
	}
	if debate.CreatedAt.IsZero() {
		debate.CreatedAt = time.Now()
	}
	if debate.Status == "" {
		debate.Status = models.DebateStatusScheduled
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO debates (id, topic, format, mode, max_turns, current_turn,
			turn_timeout_seconds, turn_cooldown_seconds, status, is_sandbox, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		debate.ID, debate.Topic, debate.Format, debate.Mode, debate.MaxTurns, debate.CurrentTurn,
		debate.TurnTimeoutSeconds, debate.TurnCooldownSeconds, debate.Status, debate.IsSandbox, debate.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting debate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDebate(ctx context.Context, id uuid.UUID) (*models.Debate, error) {
	row := s.pool.QueryRow(ctx, selectDebate+` WHERE id = $1`, id)
	return scanDebate(row)
}

const selectDebate = `
	SELECT id, topic, format, mode, max_turns, current_turn,
		turn_timeout_seconds, turn_cooldown_seconds, status, is_sandbox,
		started_at, completed_at, created_at
	FROM debates`

func scanDebate(row pgx.Row) (*models.Debate, error) {
	var d models.Debate
	err := row.Scan(&d.ID, &d.Topic, &d.Format, &d.Mode, &d.MaxTurns, &d.CurrentTurn,
		&d.TurnTimeoutSeconds, &d.TurnCooldownSeconds, &d.Status, &d.IsSandbox,
		&d.StartedAt, &d.CompletedAt, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning debate: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) StartDebate(ctx context.Context, id uuid.UUID) (*models.Debate, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status models.DebateStatus
	err = tx.QueryRow(ctx, `SELECT status FROM debates WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking debate: %w", err)
	}
	if status != models.DebateStatusScheduled {
		return nil, ErrInvalidTransition
	}

	row := tx.QueryRow(ctx, `
		UPDATE debates SET status = $2, started_at = now() WHERE id = $1
		RETURNING id, topic, format, mode, max_turns, current_turn,
			turn_timeout_seconds, turn_cooldown_seconds, status, is_sandbox,
			started_at, completed_at, created_at`,
		id, models.DebateStatusInProgress)
	debate, err := scanDebate(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing start: %w", err)
	}
	return debate, nil
}

func (s *PostgresStore) SetDebateCurrentTurn(ctx context.Context, id uuid.UUID, turn int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE debates SET current_turn = $2 WHERE id = $1`, id, turn)
	if err != nil {
		return fmt.Errorf("updating current turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FinishDebate(ctx context.Context, id uuid.UUID, status models.DebateStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE debates SET status = $2, completed_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("finishing debate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddDebateParticipant(ctx context.Context, p *models.DebateParticipant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO debate_participants (id, debate_id, agent_id, side, team_id, turn_order)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.DebateID, p.AgentID, p.Side, p.TeamID, p.TurnOrder)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDebateParticipants(ctx context.Context, debateID uuid.UUID) ([]*models.DebateParticipant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, debate_id, agent_id, side, team_id, turn_order
		FROM debate_participants WHERE debate_id = $1 ORDER BY turn_order`, debateID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var out []*models.DebateParticipant
	for rows.Next() {
		var p models.DebateParticipant
		if err := rows.Scan(&p.ID, &p.DebateID, &p.AgentID, &p.Side, &p.TeamID, &p.TurnOrder); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountActiveDebates(ctx context.Context, agentID, exclude uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM debate_participants p
		JOIN debates d ON d.id = p.debate_id
		WHERE p.agent_id = $1 AND d.status = $2 AND d.id <> $3`,
		agentID, models.DebateStatusInProgress, exclude).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active debates: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListDebates(ctx context.Context) ([]*models.Debate, error) {
	rows, err := s.pool.Query(ctx, selectDebate+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing debates: %w", err)
	}
	defer rows.Close()

	var out []*models.Debate
	for rows.Next() {
		d, err := scanDebate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- Turns ----

func (s *PostgresStore) CreateTurn(ctx context.Context, turn *models.Turn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if turn.Status == "" {
		turn.Status = models.TurnStatusPending
	}
	citations, err := marshalJSON(turn.Citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO turns (id, debate_id, agent_id, turn_number, status, stance, claim,
			argument, citations, rebuttal_target_id, team_id, token_count,
			submitted_at, validated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		turn.ID, turn.DebateID, turn.AgentID, turn.TurnNumber, turn.Status, turn.Stance,
		turn.Claim, turn.Argument, citations, turn.RebuttalTargetID, turn.TeamID,
		turn.TokenCount, turn.SubmittedAt, turn.ValidatedAt, turn.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTurn(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	row := s.pool.QueryRow(ctx, selectTurn+` WHERE id = $1`, id)
	return scanTurn(row)
}

func (s *PostgresStore) UpdateTurn(ctx context.Context, turn *models.Turn) error {
	citations, err := marshalJSON(turn.Citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE turns SET status = $2, stance = $3, claim = $4, argument = $5,
			citations = $6, rebuttal_target_id = $7, token_count = $8,
			submitted_at = $9, validated_at = $10
		WHERE id = $1`,
		turn.ID, turn.Status, turn.Stance, turn.Claim, turn.Argument, citations,
		turn.RebuttalTargetID, turn.TokenCount, turn.SubmittedAt, turn.ValidatedAt)
	if err != nil {
		return fmt.Errorf("updating turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectTurn = `
	SELECT id, debate_id, agent_id, turn_number, status, stance, claim, argument,
		citations, rebuttal_target_id, team_id, token_count,
		submitted_at, validated_at, created_at
	FROM turns`

func (s *PostgresStore) ListTurns(ctx context.Context, debateID uuid.UUID) ([]*models.Turn, error) {
	return s.listTurns(ctx, selectTurn+` WHERE debate_id = $1 ORDER BY turn_number`, debateID)
}

func (s *PostgresStore) ListValidatedTurns(ctx context.Context, debateID uuid.UUID) ([]*models.Turn, error) {
	return s.listTurns(ctx,
		selectTurn+` WHERE debate_id = $1 AND status = 'validated' ORDER BY turn_number`, debateID)
}

func (s *PostgresStore) listTurns(ctx context.Context, query string, debateID uuid.UUID) ([]*models.Turn, error) {
	rows, err := s.pool.Query(ctx, query, debateID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var out []*models.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}

func scanTurn(row pgx.Row) (*models.Turn, error) {
	var t models.Turn
	var citations []byte
	err := row.Scan(&t.ID, &t.DebateID, &t.AgentID, &t.TurnNumber, &t.Status, &t.Stance,
		&t.Claim, &t.Argument, &citations, &t.RebuttalTargetID, &t.TeamID, &t.TokenCount,
		&t.SubmittedAt, &t.ValidatedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning turn: %w", err)
	}
	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &t.Citations); err != nil {
			return nil, fmt.Errorf("unmarshaling citations: %w", err)
		}
	}
	return &t, nil
}

// ---- Topics ----

func (s *PostgresStore) CreateTopic(ctx context.Context, topic *models.Topic) error {
	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}
	if topic.Status == "" {
		topic.Status = models.TopicStatusScheduled
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO topics (id, title, description, status, duration_minutes,
			polling_interval_seconds, max_comments_per_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		topic.ID, topic.Title, topic.Description, topic.Status, topic.DurationMinutes,
		topic.PollingIntervalSeconds, topic.MaxCommentsPerAgent, topic.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting topic: %w", err)
	}
	return nil
}

const selectTopic = `
	SELECT id, title, description, status, duration_minutes,
		polling_interval_seconds, max_comments_per_agent,
		started_at, closes_at, closed_at, created_at
	FROM topics`

func scanTopic(row pgx.Row) (*models.Topic, error) {
	var t models.Topic
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.DurationMinutes,
		&t.PollingIntervalSeconds, &t.MaxCommentsPerAgent,
		&t.StartedAt, &t.ClosesAt, &t.ClosedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning topic: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTopic(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	row := s.pool.QueryRow(ctx, selectTopic+` WHERE id = $1`, id)
	return scanTopic(row)
}

func (s *PostgresStore) OpenTopic(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status models.TopicStatus
	var duration int
	err = tx.QueryRow(ctx, `
		SELECT status, duration_minutes FROM topics WHERE id = $1 FOR UPDATE`, id).
		Scan(&status, &duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking topic: %w", err)
	}
	if status != models.TopicStatusScheduled {
		return nil, ErrInvalidTransition
	}

	row := tx.QueryRow(ctx, `
		UPDATE topics
		SET status = $2, started_at = now(), closes_at = now() + make_interval(mins => $3)
		WHERE id = $1
		RETURNING id, title, description, status, duration_minutes,
			polling_interval_seconds, max_comments_per_agent,
			started_at, closes_at, closed_at, created_at`,
		id, models.TopicStatusOpen, duration)
	topic, err := scanTopic(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing open: %w", err)
	}
	return topic, nil
}

func (s *PostgresStore) CloseTopic(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE topics SET status = $2, closed_at = now() WHERE id = $1`,
		id, models.TopicStatusClosed)
	if err != nil {
		return fmt.Errorf("closing topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddTopicParticipant(ctx context.Context, p *models.TopicParticipant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO topic_participants (id, topic_id, agent_id, max_comments, comment_count)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TopicID, p.AgentID, p.MaxComments, p.CommentCount)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting topic participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTopicParticipants(ctx context.Context, topicID uuid.UUID) ([]*models.TopicParticipant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic_id, agent_id, max_comments, comment_count
		FROM topic_participants WHERE topic_id = $1`, topicID)
	if err != nil {
		return nil, fmt.Errorf("listing topic participants: %w", err)
	}
	defer rows.Close()

	var out []*models.TopicParticipant
	for rows.Next() {
		var p models.TopicParticipant
		if err := rows.Scan(&p.ID, &p.TopicID, &p.AgentID, &p.MaxComments, &p.CommentCount); err != nil {
			return nil, fmt.Errorf("scanning topic participant: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) IncrementCommentCount(ctx context.Context, topicID, agentID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE topic_participants SET comment_count = comment_count + 1
		WHERE topic_id = $1 AND agent_id = $2`, topicID, agentID)
	if err != nil {
		return fmt.Errorf("incrementing comment count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	references, err := marshalJSON(comment.References)
	if err != nil {
		return fmt.Errorf("marshaling references: %w", err)
	}
	citations, err := marshalJSON(comment.Citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO comments (id, topic_id, agent_id, agent_name, content,
			"references", citations, stance, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		comment.ID, comment.TopicID, comment.AgentID, comment.AgentName, comment.Content,
		references, citations, comment.Stance, comment.TokenCount, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

const selectComment = `
	SELECT id, topic_id, agent_id, agent_name, content, "references", citations,
		stance, token_count, created_at
	FROM comments`

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	var references, citations []byte
	err := row.Scan(&c.ID, &c.TopicID, &c.AgentID, &c.AgentName, &c.Content,
		&references, &citations, &c.Stance, &c.TokenCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning comment: %w", err)
	}
	if len(references) > 0 {
		if err := json.Unmarshal(references, &c.References); err != nil {
			return nil, fmt.Errorf("unmarshaling references: %w", err)
		}
	}
	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &c.Citations); err != nil {
			return nil, fmt.Errorf("unmarshaling citations: %w", err)
		}
	}
	return &c, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	row := s.pool.QueryRow(ctx, selectComment+` WHERE id = $1`, id)
	return scanComment(row)
}

func (s *PostgresStore) ListComments(ctx context.Context, topicID uuid.UUID) ([]*models.Comment, error) {
	rows, err := s.pool.Query(ctx, selectComment+` WHERE topic_id = $1 ORDER BY created_at`, topicID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var out []*models.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, comment)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]*models.Topic, error) {
	rows, err := s.pool.Query(ctx, selectTopic+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var out []*models.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- Reactions ----

func (s *PostgresStore) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	if reaction.ID == uuid.Nil {
		reaction.ID = uuid.New()
	}
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (id, turn_id, type, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		reaction.ID, reaction.TurnID, reaction.Type, reaction.SessionID, reaction.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting reaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountReactionsByDebate(ctx context.Context, debateID uuid.UUID) (map[uuid.UUID]map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.turn_id, r.type, count(*)
		FROM reactions r
		JOIN turns t ON t.id = r.turn_id
		WHERE t.debate_id = $1
		GROUP BY r.turn_id, r.type`, debateID)
	if err != nil {
		return nil, fmt.Errorf("counting reactions: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]map[string]int)
	for rows.Next() {
		var turnID uuid.UUID
		var kind string
		var count int
		if err := rows.Scan(&turnID, &kind, &count); err != nil {
			return nil, fmt.Errorf("scanning reaction count: %w", err)
		}
		if out[turnID] == nil {
			out[turnID] = make(map[string]int)
		}
		out[turnID][kind] = count
	}
	return out, rows.Err()
}

// ---- Analysis ----

func (s *PostgresStore) UpsertAnalysisResult(ctx context.Context, result *models.AnalysisResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	now := time.Now()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	sentiment, err := marshalJSON(result.SentimentData)
	if err != nil {
		return fmt.Errorf("marshaling sentiment data: %w", err)
	}
	stats, err := marshalJSON(result.CitationStats)
	if err != nil {
		return fmt.Errorf("marshaling citation stats: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_results (id, debate_id, sentiment_data, citation_stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (debate_id)
		DO UPDATE SET sentiment_data = EXCLUDED.sentiment_data,
			citation_stats = EXCLUDED.citation_stats,
			updated_at = EXCLUDED.updated_at`,
		result.ID, result.DebateID, sentiment, stats, result.CreatedAt, result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting analysis result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisResultByDebate(ctx context.Context, debateID uuid.UUID) (*models.AnalysisResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, debate_id, sentiment_data, citation_stats, created_at, updated_at
		FROM analysis_results WHERE debate_id = $1`, debateID)

	var r models.AnalysisResult
	var sentiment, stats []byte
	err := row.Scan(&r.ID, &r.DebateID, &sentiment, &stats, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning analysis result: %w", err)
	}
	if len(sentiment) > 0 {
		if err := json.Unmarshal(sentiment, &r.SentimentData); err != nil {
			return nil, fmt.Errorf("unmarshaling sentiment data: %w", err)
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &r.CitationStats); err != nil {
			return nil, fmt.Errorf("unmarshaling citation stats: %w", err)
		}
	}
	return &r, nil
}

// ---- Fact-checks ----

const selectFactcheckRequest = `
	SELECT id, debate_id, topic_id, turn_id, comment_id, claim_hash, status,
		request_count, session_id, created_at
	FROM factcheck_requests`

func scanFactcheckRequest(row pgx.Row) (*models.FactcheckRequest, error) {
	var r models.FactcheckRequest
	err := row.Scan(&r.ID, &r.DebateID, &r.TopicID, &r.TurnID, &r.CommentID,
		&r.ClaimHash, &r.Status, &r.RequestCount, &r.SessionID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fact-check request: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) UpsertFactcheckRequest(ctx context.Context, req *models.FactcheckRequest) (*models.FactcheckRequest, bool, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.Status == "" {
		req.Status = models.FactcheckStatusPending
	}
	if req.RequestCount == 0 {
		req.RequestCount = 1
	}

	// Dedup key is (run, claim_hash). Two partial unique indexes back the
	// conflict target, one per run kind, so the upsert branches on which
	// run id is set.
	conflict := `(debate_id, claim_hash) WHERE debate_id IS NOT NULL`
	if req.DebateID == nil {
		conflict = `(topic_id, claim_hash) WHERE topic_id IS NOT NULL`
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO factcheck_requests (id, debate_id, topic_id, turn_id, comment_id,
			claim_hash, status, request_count, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT `+conflict+`
		DO UPDATE SET request_count = factcheck_requests.request_count + 1
		RETURNING id, debate_id, topic_id, turn_id, comment_id, claim_hash, status,
			request_count, session_id, created_at,
			(xmax = 0) AS inserted`,
		req.ID, req.DebateID, req.TopicID, req.TurnID, req.CommentID,
		req.ClaimHash, req.Status, req.RequestCount, req.SessionID, req.CreatedAt)

	var r models.FactcheckRequest
	var inserted bool
	err := row.Scan(&r.ID, &r.DebateID, &r.TopicID, &r.TurnID, &r.CommentID,
		&r.ClaimHash, &r.Status, &r.RequestCount, &r.SessionID, &r.CreatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("upserting fact-check request: %w", err)
	}
	return &r, inserted, nil
}

func (s *PostgresStore) GetFactcheckRequest(ctx context.Context, id uuid.UUID) (*models.FactcheckRequest, error) {
	row := s.pool.QueryRow(ctx, selectFactcheckRequest+` WHERE id = $1`, id)
	return scanFactcheckRequest(row)
}

func (s *PostgresStore) UpdateFactcheckStatus(ctx context.Context, id uuid.UUID, status models.FactcheckStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE factcheck_requests SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating fact-check status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnfinishedFactcheckRequests(ctx context.Context) ([]*models.FactcheckRequest, error) {
	rows, err := s.pool.Query(ctx,
		selectFactcheckRequest+` WHERE status IN ('pending', 'processing') ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing unfinished fact-check requests: %w", err)
	}
	defer rows.Close()

	var out []*models.FactcheckRequest
	for rows.Next() {
		req, err := scanFactcheckRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountFactcheckRequests(ctx context.Context, debateID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM factcheck_requests WHERE debate_id = $1`, debateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting fact-check requests: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CreateFactcheckResult(ctx context.Context, result *models.FactcheckResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	details, err := marshalJSON(result.Details)
	if err != nil {
		return fmt.Errorf("marshaling details: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO factcheck_results (id, request_id, turn_id, comment_id, verdict,
			citation_url, citation_accessible, content_match, logic_valid, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		result.ID, result.RequestID, result.TurnID, result.CommentID, result.Verdict,
		result.CitationURL, result.CitationAccessible, result.ContentMatch,
		result.LogicValid, details, result.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting fact-check result: %w", err)
	}
	return nil
}

const selectFactcheckResult = `
	SELECT r.id, r.request_id, r.turn_id, r.comment_id, r.verdict, r.citation_url,
		r.citation_accessible, r.content_match, r.logic_valid, r.details, r.created_at
	FROM factcheck_results r`

func scanFactcheckResult(row pgx.Row) (*models.FactcheckResult, error) {
	var r models.FactcheckResult
	var details []byte
	err := row.Scan(&r.ID, &r.RequestID, &r.TurnID, &r.CommentID, &r.Verdict,
		&r.CitationURL, &r.CitationAccessible, &r.ContentMatch, &r.LogicValid,
		&details, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fact-check result: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return nil, fmt.Errorf("unmarshaling details: %w", err)
		}
	}
	return &r, nil
}

func (s *PostgresStore) GetFactcheckResultByRequest(ctx context.Context, requestID uuid.UUID) (*models.FactcheckResult, error) {
	row := s.pool.QueryRow(ctx, selectFactcheckResult+` WHERE r.request_id = $1`, requestID)
	return scanFactcheckResult(row)
}

func (s *PostgresStore) GetFactcheckResultByTurn(ctx context.Context, turnID uuid.UUID) (*models.FactcheckResult, error) {
	row := s.pool.QueryRow(ctx, selectFactcheckResult+` WHERE r.turn_id = $1`, turnID)
	return scanFactcheckResult(row)
}

func (s *PostgresStore) ListFactcheckResultsByDebate(ctx context.Context, debateID uuid.UUID) ([]*models.FactcheckResult, error) {
	return s.listFactcheckResults(ctx, `q.debate_id = $1`, debateID)
}

func (s *PostgresStore) ListFactcheckResultsByTopic(ctx context.Context, topicID uuid.UUID) ([]*models.FactcheckResult, error) {
	return s.listFactcheckResults(ctx, `q.topic_id = $1`, topicID)
}

func (s *PostgresStore) listFactcheckResults(ctx context.Context, where string, runID uuid.UUID) ([]*models.FactcheckResult, error) {
	rows, err := s.pool.Query(ctx, selectFactcheckResult+`
		JOIN factcheck_requests q ON q.id = r.request_id
		WHERE `+where+` ORDER BY r.created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing fact-check results: %w", err)
	}
	defer rows.Close()

	var out []*models.FactcheckResult
	for rows.Next() {
		r, err := scanFactcheckResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- Sandbox ----

func (s *PostgresStore) CreateSandboxResult(ctx context.Context, result *models.SandboxResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	checks, err := marshalJSON(result.Checks)
	if err != nil {
		return fmt.Errorf("marshaling checks: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sandbox_results (id, agent_id, debate_id, status, checks, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.ID, result.AgentID, result.DebateID, result.Status, checks,
		result.CreatedAt, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("inserting sandbox result: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSandboxResult(ctx context.Context, result *models.SandboxResult) error {
	checks, err := marshalJSON(result.Checks)
	if err != nil {
		return fmt.Errorf("marshaling checks: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE sandbox_results
		SET status = $2, checks = $3, debate_id = $4, completed_at = $5
		WHERE id = $1`,
		result.ID, result.Status, checks, result.DebateID, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("updating sandbox result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSandboxResult(ctx context.Context, id uuid.UUID) (*models.SandboxResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, debate_id, status, checks, created_at, completed_at
		FROM sandbox_results WHERE id = $1`, id)

	var r models.SandboxResult
	var checks []byte
	err := row.Scan(&r.ID, &r.AgentID, &r.DebateID, &r.Status, &checks, &r.CreatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sandbox result: %w", err)
	}
	if len(checks) > 0 {
		if err := json.Unmarshal(checks, &r.Checks); err != nil {
			return nil, fmt.Errorf("unmarshaling checks: %w", err)
		}
	}
	return &r, nil
}

func (s *PostgresStore) LatestSandboxResult(ctx context.Context, agentID uuid.UUID) (*models.SandboxResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, debate_id, status, checks, created_at, completed_at
		FROM sandbox_results WHERE agent_id = $1
		ORDER BY created_at DESC LIMIT 1`, agentID)

	var r models.SandboxResult
	var checks []byte
	err := row.Scan(&r.ID, &r.AgentID, &r.DebateID, &r.Status, &checks, &r.CreatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sandbox result: %w", err)
	}
	if len(checks) > 0 {
		if err := json.Unmarshal(checks, &r.Checks); err != nil {
			return nil, fmt.Errorf("unmarshaling checks: %w", err)
		}
	}
	return &r, nil
}

var _ Store = (*PostgresStore)(nil)
