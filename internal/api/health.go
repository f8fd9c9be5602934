package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vidfeed/internal/playback"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// healthChecker is satisfied by *db.DB
type healthChecker interface {
	Health(ctx context.Context) error
}

type sessionCounter interface {
	Count() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       healthChecker
	sessions sessionCounter
	gate     *playback.Gate
}

// NewHealthHandler creates a new health check handler. sessions and gate may be nil.
func NewHealthHandler(database healthChecker, sessions sessionCounter, gate *playback.Gate) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions, gate: gate}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}
	if h.sessions != nil {
		response.Details["sessions"] = h.sessions.Count()
	}
	if h.gate != nil {
		response.Details["player_sdk"] = h.gate.State().String()
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database healthChecker, sessions sessionCounter, gate *playback.Gate) {
	handler := NewHealthHandler(database, sessions, gate)
	apiGroup.GET("/health", handler.Check)
}
