package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local runs
// without a database. All methods copy on read and write so callers
// never share row memory with the store.
type MemoryStore struct {
	mu sync.Mutex

	agents       map[uuid.UUID]*models.Agent
	debates      map[uuid.UUID]*models.Debate
	participants map[uuid.UUID][]*models.DebateParticipant // by debate
	turns        map[uuid.UUID]*models.Turn
	topics       map[uuid.UUID]*models.Topic
	topicParts   map[uuid.UUID][]*models.TopicParticipant // by topic
	comments     map[uuid.UUID]*models.Comment
	reactions    map[uuid.UUID]*models.Reaction
	analyses     map[uuid.UUID]*models.AnalysisResult // by debate id
	fcRequests   map[uuid.UUID]*models.FactcheckRequest
	fcResults    map[uuid.UUID]*models.FactcheckResult // by request id
	sandbox      map[uuid.UUID]*models.SandboxResult

	seq int64 // creation order tiebreaker
	ord map[uuid.UUID]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:       make(map[uuid.UUID]*models.Agent),
		debates:      make(map[uuid.UUID]*models.Debate),
		participants: make(map[uuid.UUID][]*models.DebateParticipant),
		turns:        make(map[uuid.UUID]*models.Turn),
		topics:       make(map[uuid.UUID]*models.Topic),
		topicParts:   make(map[uuid.UUID][]*models.TopicParticipant),
		comments:     make(map[uuid.UUID]*models.Comment),
		reactions:    make(map[uuid.UUID]*models.Reaction),
		analyses:     make(map[uuid.UUID]*models.AnalysisResult),
		fcRequests:   make(map[uuid.UUID]*models.FactcheckRequest),
		fcResults:    make(map[uuid.UUID]*models.FactcheckResult),
		sandbox:      make(map[uuid.UUID]*models.SandboxResult),
		ord:          make(map[uuid.UUID]int64),
	}
}

func (s *MemoryStore) next(id uuid.UUID) {
	s.seq++
	s.ord[id] = s.seq
}

// ---- Agents ----

func (s *MemoryStore) CreateAgent(_ context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}
	if _, ok := s.agents[agent.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.agents {
		if existing.Name == agent.Name {
			return ErrAlreadyExists
		}
	}
	cp := *agent
	s.agents[agent.ID] = &cp
	s.next(agent.ID)
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id uuid.UUID) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return s.ord[out[i].ID] < s.ord[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) UpdateAgentStatus(_ context.Context, id uuid.UUID, status models.AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

// ---- Debates ----

func (s *MemoryStore) CreateDebate(_ context.Context, debate *models.Debate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if debate.ID == uuid.Nil {
		debate.ID = uuid.New()
	}
	if debate.CreatedAt.IsZero() {
		debate.CreatedAt = time.Now()
	}
	if debate.Status == "" {
		debate.Status = models.DebateStatusScheduled
	}
	cp := *debate
	s.debates[debate.ID] = &cp
	s.next(debate.ID)
	return nil
}

func (s *MemoryStore) GetDebate(_ context.Context, id uuid.UUID) (*models.Debate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) StartDebate(_ context.Context, id uuid.UUID) (*models.Debate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debates[id]
	if !ok {
		return nil, ErrNotFound
	}
	if d.Status != models.DebateStatusScheduled {
		return nil, ErrInvalidTransition
	}
	now := time.Now()
	d.Status = models.DebateStatusInProgress
	d.StartedAt = &now
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) ListDebates(_ context.Context) ([]*models.Debate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Debate, 0, len(s.debates))
	for _, d := range s.debates {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return s.ord[out[i].ID] > s.ord[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) SetDebateCurrentTurn(_ context.Context, id uuid.UUID, turn int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debates[id]
	if !ok {
		return ErrNotFound
	}
	d.CurrentTurn = turn
	return nil
}

func (s *MemoryStore) FinishDebate(_ context.Context, id uuid.UUID, status models.DebateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debates[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	d.Status = status
	d.CompletedAt = &now
	return nil
}

func (s *MemoryStore) AddDebateParticipant(_ context.Context, p *models.DebateParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	s.participants[p.DebateID] = append(s.participants[p.DebateID], &cp)
	return nil
}

func (s *MemoryStore) ListDebateParticipants(_ context.Context, debateID uuid.UUID) ([]*models.DebateParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := s.participants[debateID]
	out := make([]*models.DebateParticipant, len(parts))
	for i, p := range parts {
		cp := *p
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnOrder < out[j].TurnOrder })
	return out, nil
}

func (s *MemoryStore) CountActiveDebates(_ context.Context, agentID, exclude uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for debateID, parts := range s.participants {
		if debateID == exclude {
			continue
		}
		d, ok := s.debates[debateID]
		if !ok || d.Status != models.DebateStatusInProgress {
			continue
		}
		for _, p := range parts {
			if p.AgentID == agentID {
				count++
				break
			}
		}
	}
	return count, nil
}

// ---- Turns ----

func (s *MemoryStore) CreateTurn(_ context.Context, turn *models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if turn.Status == "" {
		turn.Status = models.TurnStatusPending
	}
	for _, t := range s.turns {
		if t.DebateID == turn.DebateID && t.TurnNumber == turn.TurnNumber {
			return ErrAlreadyExists
		}
	}
	cp := copyTurn(turn)
	s.turns[turn.ID] = cp
	s.next(turn.ID)
	return nil
}

func (s *MemoryStore) GetTurn(_ context.Context, id uuid.UUID) (*models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.turns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTurn(t), nil
}

func (s *MemoryStore) UpdateTurn(_ context.Context, turn *models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.turns[turn.ID]; !ok {
		return ErrNotFound
	}
	s.turns[turn.ID] = copyTurn(turn)
	return nil
}

func (s *MemoryStore) ListTurns(_ context.Context, debateID uuid.UUID) ([]*models.Turn, error) {
	return s.listTurns(debateID, false)
}

func (s *MemoryStore) ListValidatedTurns(_ context.Context, debateID uuid.UUID) ([]*models.Turn, error) {
	return s.listTurns(debateID, true)
}

func (s *MemoryStore) listTurns(debateID uuid.UUID, validatedOnly bool) ([]*models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Turn
	for _, t := range s.turns {
		if t.DebateID != debateID {
			continue
		}
		if validatedOnly && t.Status != models.TurnStatusValidated {
			continue
		}
		out = append(out, copyTurn(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnNumber < out[j].TurnNumber })
	return out, nil
}

func copyTurn(t *models.Turn) *models.Turn {
	cp := *t
	cp.Citations = append([]models.Citation(nil), t.Citations...)
	if t.RebuttalTargetID != nil {
		id := *t.RebuttalTargetID
		cp.RebuttalTargetID = &id
	}
	return &cp
}

// ---- Topics ----

func (s *MemoryStore) CreateTopic(_ context.Context, topic *models.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}
	if topic.Status == "" {
		topic.Status = models.TopicStatusScheduled
	}
	cp := *topic
	s.topics[topic.ID] = &cp
	s.next(topic.ID)
	return nil
}

func (s *MemoryStore) GetTopic(_ context.Context, id uuid.UUID) (*models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.topics[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tp
	return &cp, nil
}

func (s *MemoryStore) ListTopics(_ context.Context) ([]*models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Topic, 0, len(s.topics))
	for _, tp := range s.topics {
		cp := *tp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return s.ord[out[i].ID] > s.ord[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) OpenTopic(_ context.Context, id uuid.UUID) (*models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.topics[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tp.Status != models.TopicStatusScheduled {
		return nil, ErrInvalidTransition
	}
	now := time.Now()
	closes := now.Add(time.Duration(tp.DurationMinutes) * time.Minute)
	tp.Status = models.TopicStatusOpen
	tp.StartedAt = &now
	tp.ClosesAt = &closes
	cp := *tp
	return &cp, nil
}

func (s *MemoryStore) CloseTopic(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.topics[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	tp.Status = models.TopicStatusClosed
	tp.ClosedAt = &now
	return nil
}

func (s *MemoryStore) AddTopicParticipant(_ context.Context, p *models.TopicParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	s.topicParts[p.TopicID] = append(s.topicParts[p.TopicID], &cp)
	return nil
}

func (s *MemoryStore) ListTopicParticipants(_ context.Context, topicID uuid.UUID) ([]*models.TopicParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := s.topicParts[topicID]
	out := make([]*models.TopicParticipant, len(parts))
	for i, p := range parts {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) IncrementCommentCount(_ context.Context, topicID, agentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.topicParts[topicID] {
		if p.AgentID == agentID {
			p.CommentCount++
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	cp := copyComment(comment)
	s.comments[comment.ID] = cp
	s.next(comment.ID)
	return nil
}

func (s *MemoryStore) GetComment(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyComment(c), nil
}

func (s *MemoryStore) ListComments(_ context.Context, topicID uuid.UUID) ([]*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Comment
	for _, c := range s.comments {
		if c.TopicID == topicID {
			out = append(out, copyComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.ord[out[i].ID] < s.ord[out[j].ID] })
	return out, nil
}

func copyComment(c *models.Comment) *models.Comment {
	cp := *c
	cp.References = append([]models.CommentReference(nil), c.References...)
	cp.Citations = append([]models.Citation(nil), c.Citations...)
	return &cp
}

// ---- Reactions ----

func (s *MemoryStore) CreateReaction(_ context.Context, reaction *models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reactions {
		if existing.TurnID == reaction.TurnID &&
			existing.Type == reaction.Type &&
			existing.SessionID == reaction.SessionID {
			return ErrAlreadyExists
		}
	}
	if reaction.ID == uuid.Nil {
		reaction.ID = uuid.New()
	}
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}
	cp := *reaction
	s.reactions[reaction.ID] = &cp
	s.next(reaction.ID)
	return nil
}

func (s *MemoryStore) CountReactionsByDebate(_ context.Context, debateID uuid.UUID) (map[uuid.UUID]map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]map[string]int)
	for _, r := range s.reactions {
		turn, ok := s.turns[r.TurnID]
		if !ok || turn.DebateID != debateID {
			continue
		}
		if out[r.TurnID] == nil {
			out[r.TurnID] = make(map[string]int)
		}
		out[r.TurnID][r.Type]++
	}
	return out, nil
}

// ---- Analysis ----

func (s *MemoryStore) UpsertAnalysisResult(_ context.Context, result *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.analyses[result.DebateID]; ok {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
	} else {
		if result.ID == uuid.Nil {
			result.ID = uuid.New()
		}
		if result.CreatedAt.IsZero() {
			result.CreatedAt = now
		}
	}
	result.UpdatedAt = now
	s.analyses[result.DebateID] = copyAnalysis(result)
	return nil
}

func (s *MemoryStore) GetAnalysisResultByDebate(_ context.Context, debateID uuid.UUID) (*models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[debateID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAnalysis(a), nil
}

func copyAnalysis(a *models.AnalysisResult) *models.AnalysisResult {
	cp := *a
	cp.SentimentData = append([]models.SentimentEntry(nil), a.SentimentData...)
	if a.CitationStats != nil {
		stats := *a.CitationStats
		cp.CitationStats = &stats
	}
	return &cp
}

// ---- Fact-checks ----

func (s *MemoryStore) UpsertFactcheckRequest(_ context.Context, req *models.FactcheckRequest) (*models.FactcheckRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.fcRequests {
		if existing.ClaimHash != req.ClaimHash {
			continue
		}
		if !sameRun(existing, req) {
			continue
		}
		existing.RequestCount++
		cp := *existing
		return &cp, false, nil
	}
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
	cp := *req
	s.fcRequests[req.ID] = &cp
	s.next(req.ID)
	out := cp
	return &out, true, nil
}

func sameRun(a, b *models.FactcheckRequest) bool {
	if a.DebateID != nil && b.DebateID != nil {
		return *a.DebateID == *b.DebateID
	}
	if a.TopicID != nil && b.TopicID != nil {
		return *a.TopicID == *b.TopicID
	}
	return false
}

func (s *MemoryStore) GetFactcheckRequest(_ context.Context, id uuid.UUID) (*models.FactcheckRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fcRequests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpdateFactcheckStatus(_ context.Context, id uuid.UUID, status models.FactcheckStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fcRequests[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	return nil
}

func (s *MemoryStore) ListUnfinishedFactcheckRequests(_ context.Context) ([]*models.FactcheckRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.FactcheckRequest
	for _, r := range s.fcRequests {
		if r.Status == models.FactcheckStatusPending || r.Status == models.FactcheckStatusProcessing {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.ord[out[i].ID] < s.ord[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) CountFactcheckRequests(_ context.Context, debateID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.fcRequests {
		if r.DebateID != nil && *r.DebateID == debateID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateFactcheckResult(_ context.Context, result *models.FactcheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fcResults[result.RequestID]; ok {
		return ErrAlreadyExists
	}
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	cp := *result
	s.fcResults[result.RequestID] = &cp
	s.next(result.ID)
	return nil
}

func (s *MemoryStore) GetFactcheckResultByTurn(_ context.Context, turnID uuid.UUID) (*models.FactcheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.fcResults {
		if r.TurnID != nil && *r.TurnID == turnID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListFactcheckResultsByDebate(_ context.Context, debateID uuid.UUID) ([]*models.FactcheckResult, error) {
	return s.listFactcheckResults(func(req *models.FactcheckRequest) bool {
		return req.DebateID != nil && *req.DebateID == debateID
	}), nil
}

func (s *MemoryStore) ListFactcheckResultsByTopic(_ context.Context, topicID uuid.UUID) ([]*models.FactcheckResult, error) {
	return s.listFactcheckResults(func(req *models.FactcheckRequest) bool {
		return req.TopicID != nil && *req.TopicID == topicID
	}), nil
}

func (s *MemoryStore) listFactcheckResults(match func(*models.FactcheckRequest) bool) []*models.FactcheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.FactcheckResult
	for requestID, r := range s.fcResults {
		req, ok := s.fcRequests[requestID]
		if !ok || !match(req) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return s.ord[out[i].ID] < s.ord[out[j].ID] })
	return out
}

func (s *MemoryStore) GetFactcheckResultByRequest(_ context.Context, requestID uuid.UUID) (*models.FactcheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fcResults[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ---- Sandbox ----

func (s *MemoryStore) CreateSandboxResult(_ context.Context, result *models.SandboxResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	cp := *result
	cp.Checks = append([]models.SandboxCheck(nil), result.Checks...)
	s.sandbox[result.ID] = &cp
	s.next(result.ID)
	return nil
}

func (s *MemoryStore) UpdateSandboxResult(_ context.Context, result *models.SandboxResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sandbox[result.ID]; !ok {
		return ErrNotFound
	}
	cp := *result
	cp.Checks = append([]models.SandboxCheck(nil), result.Checks...)
	s.sandbox[result.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSandboxResult(_ context.Context, id uuid.UUID) (*models.SandboxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sandbox[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	cp.Checks = append([]models.SandboxCheck(nil), r.Checks...)
	return &cp, nil
}

func (s *MemoryStore) LatestSandboxResult(_ context.Context, agentID uuid.UUID) (*models.SandboxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SandboxResult
	for _, r := range s.sandbox {
		if r.AgentID != agentID {
			continue
		}
		if latest == nil || s.ord[r.ID] > s.ord[latest.ID] {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	cp.Checks = append([]models.SandboxCheck(nil), latest.Checks...)
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
