package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware echoes the caller's X-Request-ID or mints one, and
// stores it in the request context for logging
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// errorHandlerMiddleware answers 500 instead of dropping the connection on panic
func errorHandlerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.WithFields(map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).ErrorContext(c.Request.Context(), "Panic while handling request", fmt.Errorf("%v", rec))
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal server error",
				Message: "an unexpected error occurred",
			})
		}()
		c.Next()
	}
}

// metricsMiddleware records each request under its route template. Requests
// that match no route share the "unmatched" label.
func metricsMiddleware(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
