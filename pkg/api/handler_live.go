package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/gin-gonic/gin"
)

// pingInterval is the SSE keep-alive cadence on an idle stream.
const pingInterval = 30 * time.Second

// liveStream handles GET /api/debates/:id/live and /api/topics/:id/live.
// Events are delivered as SSE; an idle stream gets a ping every 30s. The
// stream ends on client disconnect or on the run's terminal event.
func (s *Server) liveStream(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if debate, err := s.store.GetDebate(ctx, id); err == nil {
		if debate.Mode != models.ModeLive {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Debate is not in live mode"})
			return
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	} else if _, err := s.store.GetTopic(ctx, id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	sub := s.bus.Subscribe(id)
	defer s.bus.Unsubscribe(sub)

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	c.SSEvent(events.EventViewerCount, gin.H{"count": s.bus.ViewerCount(id)})
	c.Writer.Flush()

	ping := time.NewTimer(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt := <-sub.C:
			c.SSEvent(evt.Type, evt.Data)
			c.Writer.Flush()
			if evt.Type == events.EventDebateComplete || evt.Type == events.EventTopicClosed {
				return
			}
			if !ping.Stop() {
				select {
				case <-ping.C:
				default:
				}
			}
			ping.Reset(pingInterval)

		case <-ping.C:
			c.SSEvent(events.EventPing, gin.H{})
			c.Writer.Flush()
			ping.Reset(pingInterval)
		}
	}
}
