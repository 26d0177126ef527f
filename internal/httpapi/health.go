package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/portfolio/internal/storage"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// HealthHandlers report whether the contact store is reachable.
type HealthHandlers struct {
	store  storage.ContactStore
	logger *zap.Logger
}

// NewHealthHandlers binds the health check to the contact store.
func NewHealthHandlers(store storage.ContactStore, logger *zap.Logger) *HealthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandlers{store: store, logger: logger}
}

// Health handles GET /healthz.
func (handlers *HealthHandlers) Health(context *gin.Context) {
	if pingErr := handlers.store.Ping(context.Request.Context()); pingErr != nil {
		handlers.logger.Warn("health_ping", zap.Error(pingErr))
		context.JSON(http.StatusServiceUnavailable, gin.H{"status": healthStatusUnavailable})
		return
	}
	context.JSON(http.StatusOK, gin.H{"status": healthStatusOK})
}
