package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/session"
)

const taskIDKey = "task_id"

// loggingMiddleware provides request logging.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware grants the configured origin credentialed access and
// answers preflight requests itself.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+csrf.HeaderName)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// csrfMiddleware rejects unsafe requests that lack the session's token.
func (s *Server) csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(csrf.HeaderName)
		if !s.guard.RequestPasses(c.Request.Context(), c.Request.Method, session.ID(c), presented) {
			c.AbortWithStatusJSON(http.StatusForbidden, api.Failure(api.ErrInvalidCSRF))
			return
		}
		c.Next()
	}
}

// requireID parses the :id segment. Anything but a decimal integer is
// treated as an unknown route.
func requireID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param("id")
		id, ok := parseID(raw)
		if !ok {
			routeNotFound(c)
			return
		}
		c.Set(taskIDKey, id)
		c.Next()
	}
}

func parseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func taskID(c *gin.Context) int64 {
	return c.GetInt64(taskIDKey)
}
