package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/plexbridge/plexbridge/internal/events"
)

// SessionController is the slice of the session manager the API consumes.
type SessionController interface {
	List() []events.SessionSnapshot
	Terminate(sessionID string) error
}

// StreamsHandler handles active session endpoints.
type StreamsHandler struct {
	sessions SessionController
}

// NewStreamsHandler creates a streams handler.
func NewStreamsHandler(sessions SessionController) *StreamsHandler {
	return &StreamsHandler{sessions: sessions}
}

// Register registers the stream routes with the API.
func (h *StreamsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listActiveStreams",
		Method:      "GET",
		Path:        "/api/streams/active",
		Summary:     "List active streaming sessions",
		Tags:        []string{"Streams"},
	}, h.ListActive)

	huma.Register(api, huma.Operation{
		OperationID: "terminateStream",
		Method:      "DELETE",
		Path:        "/api/streams/active/{session_id}",
		Summary:     "Terminate a streaming session",
		Description: "Requests termination of an active session. Terminating a session that has already closed succeeds without effect.",
		Tags:        []string{"Streams"},
	}, h.Terminate)
}

// ListActiveOutput is the output for listing active sessions.
type ListActiveOutput struct {
	Body struct {
		Sessions []events.SessionSnapshot `json:"sessions"`
		Count    int                      `json:"count"`
	}
}

// ListActive returns a snapshot of all active sessions.
func (h *StreamsHandler) ListActive(ctx context.Context, _ *struct{}) (*ListActiveOutput, error) {
	sessions := h.sessions.List()
	out := &ListActiveOutput{}
	out.Body.Sessions = sessions
	out.Body.Count = len(sessions)
	if out.Body.Sessions == nil {
		out.Body.Sessions = []events.SessionSnapshot{}
	}
	return out, nil
}

// TerminateInput is the input for terminating a session.
type TerminateInput struct {
	SessionID string `path:"session_id"`
}

// TerminateOutput is the output for terminating a session.
type TerminateOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// Terminate requests termination of a session by ID.
func (h *StreamsHandler) Terminate(ctx context.Context, input *TerminateInput) (*TerminateOutput, error) {
	if err := h.sessions.Terminate(input.SessionID); err != nil {
		return nil, huma.Error500InternalServerError("terminating session", err)
	}
	out := &TerminateOutput{}
	out.Body.Success = true
	return out, nil
}
