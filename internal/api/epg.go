package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/repository"
)

// Refresher triggers an immediate ingest cycle for one source.
type Refresher interface {
	IngestSource(ctx context.Context, source *models.EpgSource) error
}

// EpgHandler handles EPG source endpoints.
type EpgHandler struct {
	sources   repository.EpgSourceRepository
	refresher Refresher
}

// NewEpgHandler creates an EPG handler.
func NewEpgHandler(sources repository.EpgSourceRepository, refresher Refresher) *EpgHandler {
	return &EpgHandler{sources: sources, refresher: refresher}
}

// Register registers the EPG routes with the API.
func (h *EpgHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listEpgSources",
		Method:      "GET",
		Path:        "/api/epg/sources",
		Summary:     "List EPG sources",
		Tags:        []string{"EPG"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "refreshEpgSource",
		Method:      "POST",
		Path:        "/api/epg/sources/{id}/refresh",
		Summary:     "Trigger an immediate ingest cycle",
		Tags:        []string{"EPG"},
	}, h.Refresh)
}

// ListEpgSourcesOutput is the output for listing EPG sources.
type ListEpgSourcesOutput struct {
	Body struct {
		Sources []*models.EpgSource `json:"sources"`
	}
}

// List returns all EPG sources with their ingest status.
func (h *EpgHandler) List(ctx context.Context, _ *struct{}) (*ListEpgSourcesOutput, error) {
	sources, err := h.sources.ListAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing EPG sources", err)
	}
	out := &ListEpgSourcesOutput{}
	out.Body.Sources = sources
	return out, nil
}

// RefreshInput identifies the source to refresh.
type RefreshInput struct {
	ID string `path:"id"`
}

// RefreshOutput is the output for the refresh operation.
type RefreshOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// Refresh runs one ingest cycle for the source synchronously.
func (h *EpgHandler) Refresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("EPG source not found")
	}
	source, err := h.sources.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading EPG source", err)
	}
	if source == nil {
		return nil, huma.Error404NotFound("EPG source not found")
	}

	if err := h.refresher.IngestSource(ctx, source); err != nil {
		return nil, huma.Error502BadGateway("EPG ingest failed", err)
	}
	out := &RefreshOutput{}
	out.Body.Success = true
	return out, nil
}
