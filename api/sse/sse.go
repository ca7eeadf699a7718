package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/config"
	"github.com/hazuki-games/steelduel/server/game/sim"
	mw "github.com/hazuki-games/steelduel/server/middleware"
	"go.uber.org/zap"
)

const announceChannel = "announce"

// Handler handles the SSE endpoints.
type Handler struct {
	pubsub cache.PubSub
	sec    config.SecurityConfig
	c      cache.Cache
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, sec: sec, logger: logger}
}

// ServeEvents handles GET /sse/events?token=<jwt>.
// It streams arena events (shots, hits, kills, match ends) published by the
// simulation, plus system announcements, to authenticated clients. Spectator
// UIs and tree editors use this to follow live matches.
func (h *Handler) ServeEvents(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	h.setHeaders(c)

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	eventCh, unsubEvents, err := h.pubsub.Subscribe(subCtx, sim.EventChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsubEvents()

	announceCh, unsubAnnounce, err := h.pubsub.Subscribe(subCtx, announceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsubAnnounce()

	// Initial connected event so clients can confirm the stream is live.
	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-eventCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: arena\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case msg, ok := <-announceCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: announce\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// authorize validates the query token and its cached session. EventSource
// cannot set headers, so the token rides in the query string.
func (h *Handler) authorize(c *gin.Context) bool {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return false
	}

	if _, err := mw.ParseToken(tokenStr, h.sec.JWTSecret); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.c.Exists(ctx, mw.SessionKey(tokenStr))
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return false
	}
	return true
}

func (h *Handler) setHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// Announce publishes an announcement message to all SSE subscribers.
func (h *Handler) Announce(ctx context.Context, message string) error {
	return h.pubsub.Publish(ctx, announceChannel, message)
}
