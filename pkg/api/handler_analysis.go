package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SentimentAnalyzer scores the tone of a debate's turns; pkg/agents
// provides the model-backed implementation.
type SentimentAnalyzer interface {
	AnalyzeTurns(ctx context.Context, turns []*models.Turn,
		sides map[uuid.UUID]models.Side) []models.SentimentEntry
}

// Domain patterns for classifying citation URLs by source kind.
var (
	academicPatterns = []string{
		"scholar.google", "arxiv", "doi.org", "ncbi", "pubmed", "jstor",
		"ssrn", "ieee", "springer", "nature.com", "science.org", "wiley",
		"researchgate", ".edu", "academic",
	}
	newsPatterns = []string{
		"reuters", "bbc", "cnn", "nytimes", "washingtonpost", "theguardian",
		"apnews", "bloomberg", "economist", "wsj",
	}
	governmentPatterns = []string{
		".gov", ".go.kr", "europa.eu", "un.org", "who.int", "oecd.org",
	}
)

func classifyCitationURL(url string) string {
	lower := strings.ToLower(url)
	for _, p := range academicPatterns {
		if strings.Contains(lower, p) {
			return "academic"
		}
	}
	for _, p := range newsPatterns {
		if strings.Contains(lower, p) {
			return "news"
		}
	}
	if strings.Contains(lower, "wikipedia") || strings.Contains(lower, "wikimedia") {
		return "wiki"
	}
	for _, p := range governmentPatterns {
		if strings.Contains(lower, p) {
			return "government"
		}
	}
	return "other"
}

// getAnalysis handles GET /api/debates/:id/analysis.
func (s *Server) getAnalysis(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	analysis, err := s.store.GetAnalysisResultByDebate(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// generateAnalysis handles POST /api/debates/:id/analysis/generate. It
// scores sentiment over the validated turns and aggregates per-side
// citation statistics, replacing any earlier analysis of the debate.
func (s *Server) generateAnalysis(c *gin.Context) {
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

	turns, err := s.store.ListValidatedTurns(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	participants, err := s.store.ListDebateParticipants(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sides := make(map[uuid.UUID]models.Side, len(participants))
	for _, p := range participants {
		sides[p.AgentID] = p.Side
	}

	analysis := &models.AnalysisResult{
		DebateID:      id,
		SentimentData: s.analyzer.AnalyzeTurns(ctx, turns, sides),
		CitationStats: citationStats(turns, sides),
	}
	if err := s.store.UpsertAnalysisResult(ctx, analysis); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("Debate analysis generated", "debate_id", id, "turns", len(turns))
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "message": "Analysis generation completed"})
}

// citationStats aggregates citation counts, unique source URLs, and
// source-type buckets per side.
func citationStats(turns []*models.Turn, sides map[uuid.UUID]models.Side) *models.CitationStats {
	stats := map[models.Side]*models.SideCitationStats{
		models.SidePro: {},
		models.SideCon: {},
	}
	unique := map[models.Side]map[string]struct{}{
		models.SidePro: {},
		models.SideCon: {},
	}

	for _, t := range turns {
		side := sides[t.AgentID]
		sideStats, ok := stats[side]
		if !ok {
			continue
		}
		sideStats.Total += len(t.Citations)
		for _, citation := range t.Citations {
			unique[side][citation.URL] = struct{}{}
			switch classifyCitationURL(citation.URL) {
			case "academic":
				sideStats.SourceTypes.Academic++
			case "news":
				sideStats.SourceTypes.News++
			case "wiki":
				sideStats.SourceTypes.Wiki++
			case "government":
				sideStats.SourceTypes.Government++
			default:
				sideStats.SourceTypes.Other++
			}
		}
	}
	stats[models.SidePro].UniqueSources = len(unique[models.SidePro])
	stats[models.SideCon].UniqueSources = len(unique[models.SideCon])

	return &models.CitationStats{
		Pro: *stats[models.SidePro],
		Con: *stats[models.SideCon],
	}
}
