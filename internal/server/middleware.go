package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextActorIDKey = "actor_id"

// AdminRequired authenticates admin routes with the configured bearer token.
// Authenticated requests act as the configured admin identity.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" || s.cfg.AdminToken == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorIDKey, s.cfg.AdminUserID)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) actorID(c *gin.Context) int64 {
	return c.GetInt64(contextActorIDKey)
}
