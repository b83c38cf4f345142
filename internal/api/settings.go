package api

import (
	"context"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/plexbridge/plexbridge/internal/config"
	"github.com/plexbridge/plexbridge/internal/events"
)

// LimitSetter applies concurrency limits to the session manager. New limits
// affect future admissions only.
type LimitSetter interface {
	SetLimits(maxConcurrent, maxPerChannel int)
}

// SettingsHandler exposes the runtime-tunable streaming settings.
type SettingsHandler struct {
	limits LimitSetter
	bus    *events.Bus

	mu      sync.Mutex
	current config.StreamsConfig
}

// NewSettingsHandler creates a settings handler seeded with the loaded
// configuration.
func NewSettingsHandler(cfg config.StreamsConfig, limits LimitSetter, bus *events.Bus) *SettingsHandler {
	return &SettingsHandler{limits: limits, bus: bus, current: cfg}
}

// Register registers the settings routes with the API.
func (h *SettingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSettings",
		Method:      "GET",
		Path:        "/api/settings",
		Summary:     "View streaming settings",
		Tags:        []string{"Settings"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "updateSettings",
		Method:      "PUT",
		Path:        "/api/settings",
		Summary:     "Update concurrency limits",
		Description: "Changes apply to future admissions only; active sessions are never preempted.",
		Tags:        []string{"Settings"},
	}, h.Update)
}

// SettingsResponse is the settings payload.
type SettingsResponse struct {
	MaxConcurrent           int    `json:"max_concurrent"`
	MaxConcurrentPerChannel int    `json:"max_concurrent_per_channel"`
	StreamTimeout           string `json:"stream_timeout"`
	GracePeriod             string `json:"grace_period"`
}

// SettingsOutput is the output for the settings endpoints.
type SettingsOutput struct {
	Body SettingsResponse
}

// Get returns the current streaming settings.
func (h *SettingsHandler) Get(ctx context.Context, _ *struct{}) (*SettingsOutput, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &SettingsOutput{Body: h.response()}, nil
}

// UpdateSettingsInput is the input for updating concurrency limits.
type UpdateSettingsInput struct {
	Body struct {
		MaxConcurrent           int `json:"max_concurrent" minimum:"1"`
		MaxConcurrentPerChannel int `json:"max_concurrent_per_channel" minimum:"1"`
	}
}

// Update applies new concurrency limits and announces the change.
func (h *SettingsHandler) Update(ctx context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	h.mu.Lock()
	h.current.MaxConcurrent = input.Body.MaxConcurrent
	h.current.MaxConcurrentPerChannel = input.Body.MaxConcurrentPerChannel
	resp := h.response()
	h.mu.Unlock()

	h.limits.SetLimits(input.Body.MaxConcurrent, input.Body.MaxConcurrentPerChannel)
	h.bus.Publish(events.SettingsChangedEvent{
		Keys:      []string{"streams.max_concurrent", "streams.max_concurrent_per_channel"},
		Timestamp: time.Now().UTC(),
	})
	return &SettingsOutput{Body: resp}, nil
}

func (h *SettingsHandler) response() SettingsResponse {
	return SettingsResponse{
		MaxConcurrent:           h.current.MaxConcurrent,
		MaxConcurrentPerChannel: h.current.MaxConcurrentPerChannel,
		StreamTimeout:           h.current.StreamTimeout.String(),
		GracePeriod:             h.current.GracePeriod.String(),
	}
}
