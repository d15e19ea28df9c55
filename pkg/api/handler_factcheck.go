package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
)

// requestFactcheck handles POST /api/debates/:id/turns/:turn_id/factcheck.
// Duplicate requests for the same claim within a debate collapse onto the
// existing row with an incremented request_count; only a newly created
// request is enqueued.
func (s *Server) requestFactcheck(c *gin.Context) {
	debateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	turnID, ok := parseID(c, "turn_id")
	if !ok {
		return
	}
	var req FactcheckCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	turn, err := s.store.GetTurn(ctx, turnID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && turn.DebateID != debateID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Turn not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if turn.Status != models.TurnStatusValidated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Can only factcheck validated turns"})
		return
	}

	count, err := s.store.CountFactcheckRequests(ctx, debateID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if count >= s.cfg.MaxFactchecksPerDebate {
		c.JSON(http.StatusTooManyRequests,
			gin.H{"error": "Maximum factcheck requests reached for this debate"})
		return
	}

	fcReq, created, err := s.store.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
		DebateID:  &debateID,
		TurnID:    &turnID,
		ClaimHash: models.ClaimHash(turn.Claim, turn.Argument),
		SessionID: req.SessionID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if created {
		s.worker.Enqueue(fcReq.ID)
		slog.Info("Fact-check requested", "request_id", fcReq.ID, "turn_id", turnID)
	}
	c.JSON(http.StatusAccepted, fcReq)
}

// getTurnFactcheck handles GET /api/debates/:id/turns/:turn_id/factcheck.
func (s *Server) getTurnFactcheck(c *gin.Context) {
	if _, ok := parseID(c, "id"); !ok {
		return
	}
	turnID, ok := parseID(c, "turn_id")
	if !ok {
		return
	}
	result, err := s.store.GetFactcheckResultByTurn(c.Request.Context(), turnID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Factcheck result not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// listDebateFactchecks handles GET /api/debates/:id/factchecks.
func (s *Server) listDebateFactchecks(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	results, err := s.store.ListFactcheckResultsByDebate(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []*models.FactcheckResult{}
	}
	c.JSON(http.StatusOK, results)
}

// listTopicFactchecks handles GET /api/topics/:id/factchecks.
func (s *Server) listTopicFactchecks(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	results, err := s.store.ListFactcheckResultsByTopic(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []*models.FactcheckResult{}
	}
	c.JSON(http.StatusOK, results)
}
