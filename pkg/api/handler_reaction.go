package api

import (
	"errors"
	"net/http"

	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
)

// addReaction handles POST /api/debates/:id/turns/:turn_id/reactions.
// A session may react to a turn once per reaction type.
func (s *Server) addReaction(c *gin.Context) {
	debateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	turnID, ok := parseID(c, "turn_id")
	if !ok {
		return
	}
	var req ReactionCreateRequest
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

	reaction := &models.Reaction{
		TurnID:    turnID,
		Type:      req.Type,
		SessionID: req.SessionID,
	}
	if err := s.store.CreateReaction(ctx, reaction); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Duplicate reaction"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, reaction)
}

// listReactionCounts handles GET /api/debates/:id/reactions. Counts are
// grouped by turn id and reaction type.
func (s *Server) listReactionCounts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	counts, err := s.store.CountReactionsByDebate(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make(map[string]map[string]int, len(counts))
	for turnID, byType := range counts {
		out[turnID.String()] = byType
	}
	c.JSON(http.StatusOK, out)
}
