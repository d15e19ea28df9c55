package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
)

// listAgents handles GET /api/agents with an optional status filter.
func (s *Server) listAgents(c *gin.Context) {
	agents, err := s.store.ListAgents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := c.Query("status")
	out := make([]*models.Agent, 0, len(agents))
	for _, a := range agents {
		if status != "" && string(a.Status) != status {
			continue
		}
		out = append(out, a)
	}
	c.JSON(http.StatusOK, out)
}

// registerAgent handles POST /api/agents. An agent with an endpoint
// registers as external and must pass sandbox validation before it can
// join runs; an agent without one is a built-in backed by the platform
// LLM and is active immediately.
func (s *Server) registerAgent(c *gin.Context) {
	var req RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agent := &models.Agent{
		Name:        req.Name,
		Kind:        models.AgentKindExternal,
		Status:      models.AgentStatusRegistered,
		EndpointURL: req.EndpointURL,
		Model:       req.Model,
	}
	if req.EndpointURL == "" {
		agent.Kind = models.AgentKindBuiltin
		agent.Status = models.AgentStatusActive
	}

	if err := s.store.CreateAgent(c.Request.Context(), agent); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Agent name already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	slog.Info("Agent registered", "agent_id", agent.ID, "name", agent.Name, "kind", agent.Kind)
	c.JSON(http.StatusCreated, agent)
}

// getAgent handles GET /api/agents/:id.
func (s *Server) getAgent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agent, err := s.store.GetAgent(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, agent)
}

// startSandbox handles POST /api/agents/:id/sandbox: spawns the sandbox
// validator for a registered or previously failed external agent.
func (s *Server) startSandbox(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agent, err := s.store.GetAgent(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if agent.IsBuiltin() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Built-in agents do not run sandbox validation"})
		return
	}
	if agent.Status != models.AgentStatusRegistered && agent.Status != models.AgentStatusFailed {
		c.JSON(http.StatusUnprocessableEntity,
			gin.H{"error": "Agent status '" + string(agent.Status) + "' cannot run sandbox"})
		return
	}
	if agent.EndpointURL == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Agent has no endpoint_url configured"})
		return
	}

	go s.engine.RunSandbox(context.Background(), agent.ID)
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "agent_id": agent.ID.String()})
}

// latestSandboxResult handles GET /api/agents/:id/sandbox/latest.
func (s *Server) latestSandboxResult(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := s.store.LatestSandboxResult(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No sandbox results found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
