package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries the per-request correlation identifier.
	HeaderRequestID = "X-Request-ID"

	contextKeyRequestID = "request_id"
	requestIDMaxLength  = 128
)

// RequestID propagates an inbound X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(context *gin.Context) {
		requestID := strings.TrimSpace(context.GetHeader(HeaderRequestID))
		if requestID == "" || len(requestID) > requestIDMaxLength {
			requestID = uuid.NewString()
		}
		context.Set(contextKeyRequestID, requestID)
		context.Header(HeaderRequestID, requestID)
		context.Next()
	}
}

// RequestIDFromContext returns the identifier assigned by RequestID.
func RequestIDFromContext(context *gin.Context) string {
	return context.GetString(contextKeyRequestID)
}

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
			zap.String("request_id", RequestIDFromContext(context)),
		)
	}
}
