package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ChatTotal returns the chat-wide total.
func (s *Server) ChatTotal(c *gin.Context) {
	chatID, ok := paramInt64(c, "chat_id")
	if !ok {
		return
	}

	total, err := s.querySvc.GetTotal(c.Request.Context(), chatID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id": chatID,
		"total":   total,
	})
}

// ChatTop returns the chat leaderboard.
func (s *Server) ChatTop(c *gin.Context) {
	chatID, ok := paramInt64(c, "chat_id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid value"))
			return
		}
		limit = parsed
	}

	rows, err := s.querySvc.GetTop(c.Request.Context(), chatID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id": chatID,
		"rows":    rows,
	})
}

// UserTotal returns one user's total within a chat.
func (s *Server) UserTotal(c *gin.Context) {
	chatID, ok := paramInt64(c, "chat_id")
	if !ok {
		return
	}
	userID, ok := paramInt64(c, "user_id")
	if !ok {
		return
	}

	total, err := s.querySvc.GetUserTotal(c.Request.Context(), chatID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id": chatID,
		"user_id": userID,
		"total":   total,
	})
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid value"))
		return 0, false
	}
	return value, true
}
