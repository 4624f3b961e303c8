package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillahandlers "github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"

	"task-lifecycle-api/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	claimsKey       = "claims"
)

// RequestID echoes the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request once the handler chain has finished.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(requestIDKey),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// Recovery turns a handler panic into the standard 500 body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"path":       c.Request.URL.Path,
		}).Errorf("Handler panicked: %v", recovered)
		writeError(c, http.StatusInternalServerError, "An unexpected error occurred")
	})
}

// RequireRole admits requests whose bearer token carries at least one of roles.
// With a nil manager authentication is off and every request passes.
func RequireRole(jwt *auth.JWTManager, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwt == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="tasks"`)
			writeError(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := jwt.Validate(strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="tasks", error="invalid_token"`)
			writeError(c, http.StatusUnauthorized, err.Error())
			return
		}

		for _, role := range roles {
			if claims.HasRole(role) {
				c.Set(claimsKey, claims)
				c.Next()
				return
			}
		}
		writeError(c, http.StatusForbidden, "Insufficient role for this operation")
	}
}

// WithCORS wraps the router with gorilla's CORS handler.
func WithCORS(h http.Handler, origins []string) http.Handler {
	headers := gorillahandlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization", requestIDHeader})
	methods := gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	exposed := gorillahandlers.ExposedHeaders([]string{"Location", requestIDHeader})
	return gorillahandlers.CORS(headers, methods, exposed, gorillahandlers.AllowedOrigins(origins))(h)
}
