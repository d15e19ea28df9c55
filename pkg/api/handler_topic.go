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

// Topic creation defaults.
const (
	defaultTopicDuration        = 30 // minutes
	defaultPollingInterval      = 30 // seconds
	defaultMaxCommentsPerAgent  = 5
	maxTopicParticipantsPerCall = 10
)

// listTopics handles GET /api/topics with an optional status filter.
func (s *Server) listTopics(c *gin.Context) {
	topics, err := s.store.ListTopics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := c.Query("status")
	out := make([]*models.Topic, 0, len(topics))
	for _, t := range topics {
		if status != "" && string(t.Status) != status {
			continue
		}
		out = append(out, t)
	}
	c.JSON(http.StatusOK, out)
}

// createTopic handles POST /api/topics.
func (s *Server) createTopic(c *gin.Context) {
	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.AgentIDs) == 0 || len(req.AgentIDs) > maxTopicParticipantsPerCall {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "between 1 and 10 agents required"})
		return
	}

	ctx := c.Request.Context()
	agents, ok := s.loadActiveAgents(c, req.AgentIDs)
	if !ok {
		return
	}

	topic := &models.Topic{
		Title:                  req.Title,
		Description:            req.Description,
		DurationMinutes:        req.DurationMinutes,
		PollingIntervalSeconds: req.PollingIntervalSeconds,
		MaxCommentsPerAgent:    req.MaxCommentsPerAgent,
	}
	if topic.DurationMinutes <= 0 {
		topic.DurationMinutes = defaultTopicDuration
	}
	if topic.PollingIntervalSeconds <= 0 {
		topic.PollingIntervalSeconds = defaultPollingInterval
	}
	if topic.MaxCommentsPerAgent <= 0 {
		topic.MaxCommentsPerAgent = defaultMaxCommentsPerAgent
	}

	if err := s.store.CreateTopic(ctx, topic); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, agent := range agents {
		err := s.store.AddTopicParticipant(ctx, &models.TopicParticipant{
			TopicID:     topic.ID,
			AgentID:     agent.ID,
			MaxComments: topic.MaxCommentsPerAgent,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := s.topicResponse(ctx, topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("Topic created", "topic_id", topic.ID, "title", topic.Title)
	c.JSON(http.StatusCreated, resp)
}

// getTopic handles GET /api/topics/:id.
func (s *Server) getTopic(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	topic, err := s.store.GetTopic(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.topicResponse(c.Request.Context(), topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// startTopic handles POST /api/topics/:id/start. The row-locked
// transition opens the window and spawns the polling orchestrator.
func (s *Server) startTopic(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	topic, err := s.store.OpenTopic(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Topic is not in scheduled status"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go s.engine.RunTopic(context.Background(), topic.ID)

	resp, err := s.topicResponse(c.Request.Context(), topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// listComments handles GET /api/topics/:id/comments.
func (s *Server) listComments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetTopic(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	c.JSON(http.StatusOK, comments)
}
