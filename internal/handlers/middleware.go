package handlers

import (
	"net/http"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// Recovery recovers from panics and returns a generic 500 response
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered in API request", map[string]any{
					"error":      err,
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"client_ip":  c.ClientIP(),
					"request_id": c.GetHeader("X-Request-ID"),
					"user_agent": c.Request.UserAgent(),
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Code:  apperrors.CodeInternal,
					Error: apperrors.ErrInternal.Error(),
				})
			}
		}()

		c.Next()
	}
}

// RequestLogger logs incoming requests and their responses
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"method":      method,
			"path":        path,
			"status":      status,
			"latency_ms":  time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"request_id":  c.GetHeader("X-Request-ID"),
			"user_agent":  c.Request.UserAgent(),
			"status_text": statusText(status),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.Errors()
		}
		if id, ok := c.Get(userIDKey); ok {
			fields["user_id"] = id
		}

		if status >= http.StatusInternalServerError {
			log.Warn("Request processed", fields)
			return
		}
		log.Info("Request processed", fields)
	}
}

func statusText(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "Informational"
	case code >= 200 && code < 300:
		return "Success"
	case code >= 300 && code < 400:
		return "Redirect"
	case code >= 400 && code < 500:
		return "Client Error"
	default:
		return "Server Error"
	}
}

// NoCache stops browsers and proxies from caching account data.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Expires", "0")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}

// RequireLogin resolves the session cookie and stores the user id on the context.
func (h *Handler) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(h.cookie.CookieName)
		if err != nil {
			h.respondError(c, http.StatusUnauthorized, apperrors.ErrUnauthenticated)
			return
		}

		userID, err := h.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUserID is only valid behind RequireLogin.
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
