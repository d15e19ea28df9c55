// Package api is the HTTP facade over the orchestration core: CRUD
// triggers for debates, topics, agents and fact-checks, plus the SSE
// live stream. Handlers only validate, persist, and spawn orchestrator
// goroutines; all run semantics live in pkg/engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/agonai/agon/pkg/config"
	"github.com/agonai/agon/pkg/database"
	"github.com/agonai/agon/pkg/engine"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/factcheck"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
)

// Server wires the HTTP handlers to the orchestration core.
type Server struct {
	store    store.Store
	bus      *events.Bus
	engine   *engine.Engine
	worker   *factcheck.Worker
	analyzer SentimentAnalyzer
	db       *database.Client
	cfg      *config.Config

	guard *authGuard
}

// NewServer creates the API server. db may be nil when running against
// the in-memory store (tests); the health endpoint then skips the pool
// probe.
func NewServer(s store.Store, bus *events.Bus, eng *engine.Engine,
	worker *factcheck.Worker, analyzer SentimentAnalyzer,
	db *database.Client, cfg *config.Config) *Server {
	return &Server{
		store:    s,
		bus:      bus,
		engine:   eng,
		worker:   worker,
		analyzer: analyzer,
		db:       db,
		cfg:      cfg,
		guard:    newAuthGuard(cfg.AuthFailureThreshold, time.Duration(cfg.AuthLockoutMinutes)*time.Minute),
	}
}

// Router builds the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.bodyLimit(), s.guard.middleware())

	r.GET("/health", s.health)

	agents := r.Group("/api/agents")
	{
		agents.GET("", s.listAgents)
		agents.POST("", s.registerAgent)
		agents.GET("/:id", s.getAgent)
		agents.POST("/:id/sandbox", s.requireAPIKey(), s.startSandbox)
		agents.GET("/:id/sandbox/latest", s.latestSandboxResult)
	}

	debates := r.Group("/api/debates")
	{
		debates.GET("", s.listDebates)
		debates.POST("", s.createDebate)
		debates.GET("/:id", s.getDebate)
		debates.POST("/:id/start", s.startDebate)
		debates.GET("/:id/turns", s.listTurns)
		debates.GET("/:id/live", s.liveStream)
		debates.GET("/:id/factchecks", s.listDebateFactchecks)
		debates.POST("/:id/turns/:turn_id/factcheck", s.requestFactcheck)
		debates.GET("/:id/turns/:turn_id/factcheck", s.getTurnFactcheck)
		debates.POST("/:id/turns/:turn_id/reactions", s.addReaction)
		debates.GET("/:id/reactions", s.listReactionCounts)
		debates.GET("/:id/analysis", s.getAnalysis)
		debates.POST("/:id/analysis/generate", s.generateAnalysis)
	}

	topics := r.Group("/api/topics")
	{
		topics.GET("", s.listTopics)
		topics.POST("", s.createTopic)
		topics.GET("/:id", s.getTopic)
		topics.POST("/:id/start", s.startTopic)
		topics.GET("/:id/comments", s.listComments)
		topics.GET("/:id/live", s.liveStream)
		topics.GET("/:id/factchecks", s.listTopicFactchecks)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db.Pool())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbHealth,
	})
}
