package server

import (
	"crypto/subtle"
	"time"

	"github.com/gemini-router/api-gateway/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-KEY"

// loggerMiddleware logs HTTP requests and tags each with a request id
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		method := c.Request.Method
		clientIP := c.ClientIP()

		s.logger.Info("HTTP Request",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("client_ip", clientIP),
		)
	}
}

// corsMiddleware handles CORS
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.cfg.Security.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			}
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Cache-Control, X-Requested-With, X-API-KEY")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// apiKeyAuthMiddleware is the credential gate: it compares the caller's
// X-API-KEY header against the configured router secret. The comparison
// is constant-time, and neither the configured secret nor the attempted
// value ever reaches a log line.
func (s *Server) apiKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)

		if apiKey == "" {
			c.AbortWithStatusJSON(401, models.NewErrorResponse(
				models.KindUnauthorized, "Missing "+apiKeyHeader+" header"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.cfg.Security.APIKey)) != 1 {
			s.logger.Warn("Invalid API key attempt",
				zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(401, models.NewErrorResponse(
				models.KindUnauthorized, "Invalid API key"))
			return
		}

		c.Next()
	}
}
