package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agonai/agon/pkg/config"
	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// listDebates handles GET /api/debates with an optional status filter.
func (s *Server) listDebates(c *gin.Context) {
	debates, err := s.store.ListDebates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := c.Query("status")
	out := make([]*models.Debate, 0, len(debates))
	for _, d := range debates {
		if status != "" && string(d.Status) != status {
			continue
		}
		out = append(out, d)
	}
	c.JSON(http.StatusOK, out)
}

// createDebate handles POST /api/debates. Participants alternate
// pro/con in the given order; multi-agent formats split into two teams.
func (s *Server) createDebate(c *gin.Context) {
	var req CreateDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := models.DebateFormat(req.Format)
	if format == "" {
		format = models.Format1v1
	}
	switch format {
	case models.Format1v1, models.Format2v2, models.Format3v3:
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid format"})
		return
	}
	if len(req.AgentIDs) != config.AgentCount(format) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "format requires a different number of agents",
		})
		return
	}

	mode := models.DebateMode(req.Mode)
	if mode == "" {
		mode = models.ModeAsync
	}
	if mode != models.ModeAsync && mode != models.ModeLive {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid mode"})
		return
	}

	ctx := c.Request.Context()
	agents, ok := s.loadActiveAgents(c, req.AgentIDs)
	if !ok {
		return
	}

	debate := &models.Debate{
		Topic:               req.Topic,
		Format:              format,
		Mode:                mode,
		MaxTurns:            req.MaxTurns,
		TurnTimeoutSeconds:  req.TurnTimeoutSeconds,
		TurnCooldownSeconds: req.TurnCooldownSeconds,
	}
	if debate.MaxTurns <= 0 {
		debate.MaxTurns = config.DefaultTurns(format)
	}
	if debate.TurnTimeoutSeconds <= 0 {
		debate.TurnTimeoutSeconds = s.cfg.DefaultTurnTimeout
	}
	if debate.TurnCooldownSeconds <= 0 {
		debate.TurnCooldownSeconds = s.cfg.DefaultTurnCooldown
	}

	if err := s.store.CreateDebate(ctx, debate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sides := []models.Side{models.SidePro, models.SideCon}
	for i, agent := range agents {
		p := &models.DebateParticipant{
			DebateID:  debate.ID,
			AgentID:   agent.ID,
			Side:      sides[i%2],
			TurnOrder: i,
		}
		if format != models.Format1v1 {
			p.TeamID = string(p.Side)
		}
		if err := s.store.AddDebateParticipant(ctx, p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := s.debateResponse(ctx, debate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("Debate created", "debate_id", debate.ID, "topic", debate.Topic, "format", format)
	c.JSON(http.StatusCreated, resp)
}

// getDebate handles GET /api/debates/:id.
func (s *Server) getDebate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	debate, err := s.store.GetDebate(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.debateResponse(c.Request.Context(), debate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// startDebate handles POST /api/debates/:id/start. The row-locked
// transition guarantees the orchestrator is spawned at most once.
func (s *Server) startDebate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	debate, err := s.store.StartDebate(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
		return
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Debate is not in scheduled status"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go s.engine.RunDebate(context.Background(), debate.ID)

	resp, err := s.debateResponse(c.Request.Context(), debate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// listTurns handles GET /api/debates/:id/turns with an optional
// agent_id filter.
func (s *Server) listTurns(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetDebate(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Debate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	turns, err := s.store.ListTurns(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if raw := c.Query("agent_id"); raw != "" {
		agentID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent_id"})
			return
		}
		filtered := turns[:0]
		for _, t := range turns {
			if t.AgentID == agentID {
				filtered = append(filtered, t)
			}
		}
		turns = filtered
	}
	if turns == nil {
		turns = []*models.Turn{}
	}
	c.JSON(http.StatusOK, turns)
}

// loadActiveAgents resolves agent ids, rejecting unknown agents and
// external agents that are not active.
func (s *Server) loadActiveAgents(c *gin.Context, ids []uuid.UUID) ([]*models.Agent, bool) {
	ctx := c.Request.Context()
	agents := make([]*models.Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := s.store.GetAgent(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "One or more agents not found"})
			return nil, false
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return nil, false
		}
		if !agent.IsBuiltin() && agent.Status != models.AgentStatusActive {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Agent '" + agent.Name + "' is not active (status: " + string(agent.Status) + ")",
			})
			return nil, false
		}
		agents = append(agents, agent)
	}
	return agents, true
}
