package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs each request with method, path, status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// bodyLimit rejects request bodies over the configured cap. Declared
// oversize via Content-Length is refused up front; chunked bodies fail
// inside the handler's read through MaxBytesReader.
func (s *Server) bodyLimit() gin.HandlerFunc {
	limit := s.cfg.BodyLimitBytes
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large. Maximum size is 10KB.",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// authRecord tracks consecutive authentication failures for one IP.
type authRecord struct {
	failures     int
	blockedUntil time.Time
}

// authGuard blocks an IP after repeated authentication failures on
// tracked paths.
type authGuard struct {
	mu        sync.Mutex
	records   map[string]*authRecord
	threshold int
	lockout   time.Duration
	now       func() time.Time
}

func newAuthGuard(threshold int, lockout time.Duration) *authGuard {
	return &authGuard{
		records:   make(map[string]*authRecord),
		threshold: threshold,
		lockout:   lockout,
		now:       time.Now,
	}
}

// tracked limits failure accounting to the authenticated surfaces.
func tracked(path string) bool {
	return strings.Contains(path, "/sandbox") && !strings.Contains(path, "/sandbox/latest")
}

func (g *authGuard) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !tracked(path) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if g.blocked(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many authentication failures. Try again later.",
			})
			return
		}

		c.Next()

		switch status := c.Writer.Status(); {
		case status == http.StatusUnauthorized:
			g.recordFailure(ip)
		case status >= 200 && status < 300:
			g.recordSuccess(ip)
		}
	}
}

func (g *authGuard) blocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[ip]
	if !ok || rec.blockedUntil.IsZero() {
		return false
	}
	if !g.now().Before(rec.blockedUntil) {
		// Block expired, lazy cleanup.
		delete(g.records, ip)
		return false
	}
	return true
}

func (g *authGuard) recordFailure(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[ip]
	if !ok {
		rec = &authRecord{}
		g.records[ip] = rec
	}
	rec.failures++
	if rec.failures >= g.threshold {
		rec.blockedUntil = g.now().Add(g.lockout)
		slog.Warn("Client IP blocked after repeated auth failures", "ip", ip)
	}
}

func (g *authGuard) recordSuccess(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, ip)
}

// requireAPIKey guards developer endpoints with the static API key.
// An empty configured key disables the check (local development).
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != s.cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		c.Next()
	}
}
