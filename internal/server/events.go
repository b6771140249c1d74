package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/hivelabs/hivetally/internal/observability/context"
	tallydomain "github.com/hivelabs/hivetally/internal/tally/domain"
)

// MessageCreated ingests a message creation event.
func (s *Server) MessageCreated(c *gin.Context) {
	s.ingestEvent(c, s.tallySvc.OnMessageCreated)
}

// MessageEdited ingests a message edit event.
func (s *Server) MessageEdited(c *gin.Context) {
	s.ingestEvent(c, s.tallySvc.OnMessageEdited)
}

func (s *Server) ingestEvent(c *gin.Context, apply func(context.Context, tallydomain.Event) error) {
	var event tallydomain.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	c.Set("chat_id", event.ChatID)

	ctx := obscontext.WithTransport(c.Request.Context(), "http")

	if allowed, err := s.allowEvent(ctx, event); err != nil {
		AbortWithError(c, err)
		return
	} else if !allowed {
		s.obsMetrics.RecordRateLimitDenied(ctx, c.FullPath(), "chat_rate")
		AbortWithError(c, ErrTooManyEvents)
		return
	}

	token, locked, err := s.eventLimiter.TryLockMessage(ctx, event.ChatID, event.MessageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !locked {
		// Another delivery of the same message is in flight; it wins.
		c.JSON(http.StatusAccepted, gin.H{"status": "in_flight"})
		return
	}
	defer func() {
		_ = s.eventLimiter.ReleaseMessage(ctx, event.ChatID, event.MessageID, token)
	}()

	if err := apply(ctx, event); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) allowEvent(ctx context.Context, event tallydomain.Event) (bool, error) {
	if !s.eventLimiter.Enabled() {
		return true, nil
	}
	allowed, err := s.eventLimiter.AllowChat(ctx, event.ChatID)
	if err != nil {
		return false, err
	}
	if allowed {
		s.obsMetrics.RecordRateLimitAllowed(ctx, "/api/events")
	}
	return allowed, nil
}
