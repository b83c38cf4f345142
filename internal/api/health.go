package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/plexbridge/plexbridge/internal/version"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	db        *gorm.DB
	startTime time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db, startTime: time.Now()}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns service health including a database ping.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	status := "healthy"
	dbStatus := "ok"
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status = "degraded"
			dbStatus = "error: " + err.Error()
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Version:       version.Version,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			UptimeSeconds: time.Since(h.startTime).Seconds(),
			Checks:        map[string]string{"database": dbStatus},
		},
	}, nil
}
