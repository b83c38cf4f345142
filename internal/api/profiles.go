package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/repository"
)

// ProfilesHandler handles FFmpeg profile endpoints.
type ProfilesHandler struct {
	profiles repository.ProfileRepository
}

// NewProfilesHandler creates a profiles handler.
func NewProfilesHandler(profiles repository.ProfileRepository) *ProfilesHandler {
	return &ProfilesHandler{profiles: profiles}
}

// Register registers the profile routes with the API.
func (h *ProfilesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProfiles",
		Method:      "GET",
		Path:        "/api/profiles",
		Summary:     "List FFmpeg profiles",
		Tags:        []string{"Profiles"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getProfile",
		Method:      "GET",
		Path:        "/api/profiles/{id}",
		Summary:     "Get an FFmpeg profile",
		Tags:        []string{"Profiles"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "createProfile",
		Method:      "POST",
		Path:        "/api/profiles",
		Summary:     "Create an FFmpeg profile",
		Tags:        []string{"Profiles"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "setDefaultProfile",
		Method:      "POST",
		Path:        "/api/profiles/{id}/default",
		Summary:     "Make a profile the default",
		Description: "Moves the default flag to the given profile. Exactly one profile is the default at all times.",
		Tags:        []string{"Profiles"},
	}, h.SetDefault)

	huma.Register(api, huma.Operation{
		OperationID: "deleteProfile",
		Method:      "DELETE",
		Path:        "/api/profiles/{id}",
		Summary:     "Delete an FFmpeg profile",
		Description: "System profiles and the current default cannot be deleted.",
		Tags:        []string{"Profiles"},
	}, h.Delete)
}

// ListProfilesOutput is the output for listing profiles.
type ListProfilesOutput struct {
	Body struct {
		Profiles []*models.FFmpegProfile `json:"profiles"`
	}
}

// List returns all profiles.
func (h *ProfilesHandler) List(ctx context.Context, _ *struct{}) (*ListProfilesOutput, error) {
	profiles, err := h.profiles.ListAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing profiles", err)
	}
	out := &ListProfilesOutput{}
	out.Body.Profiles = profiles
	return out, nil
}

// ProfileInput identifies a profile by ID.
type ProfileInput struct {
	ID string `path:"id"`
}

// ProfileOutput carries a single profile.
type ProfileOutput struct {
	Body *models.FFmpegProfile
}

// Get returns a profile by ID.
func (h *ProfilesHandler) Get(ctx context.Context, input *ProfileInput) (*ProfileOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("profile not found")
	}
	profile, err := h.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading profile", err)
	}
	if profile == nil {
		return nil, huma.Error404NotFound("profile not found")
	}
	return &ProfileOutput{Body: profile}, nil
}

// CreateProfileInput is the input for creating a profile.
type CreateProfileInput struct {
	Body struct {
		Name    string                `json:"name" minLength:"1"`
		Clients models.ProfileClients `json:"clients"`
	}
}

// Create creates a new non-system profile.
func (h *ProfilesHandler) Create(ctx context.Context, input *CreateProfileInput) (*ProfileOutput, error) {
	profile := &models.FFmpegProfile{
		Name:    input.Body.Name,
		Clients: input.Body.Clients,
	}
	if err := h.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, huma.Error409Conflict("profile name already exists")
		}
		return nil, huma.Error422UnprocessableEntity("invalid profile", err)
	}
	return &ProfileOutput{Body: profile}, nil
}

// SetDefaultOutput is the output for the set-default operation.
type SetDefaultOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// SetDefault moves the default flag to the given profile.
func (h *ProfilesHandler) SetDefault(ctx context.Context, input *ProfileInput) (*SetDefaultOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("profile not found")
	}
	if err := h.profiles.SetDefault(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("profile not found")
		}
		return nil, huma.Error500InternalServerError("setting default profile", err)
	}
	out := &SetDefaultOutput{}
	out.Body.Success = true
	return out, nil
}

// Delete removes a non-system, non-default profile.
func (h *ProfilesHandler) Delete(ctx context.Context, input *ProfileInput) (*SetDefaultOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("profile not found")
	}
	if err := h.profiles.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, huma.Error404NotFound("profile not found")
		case errors.Is(err, repository.ErrProfileIsSystem):
			return nil, huma.Error409Conflict("system profiles cannot be deleted")
		case errors.Is(err, repository.ErrProfileIsDefault):
			return nil, huma.Error409Conflict("the default profile cannot be deleted")
		default:
			return nil, huma.Error500InternalServerError("deleting profile", err)
		}
	}
	out := &SetDefaultOutput{}
	out.Body.Success = true
	return out, nil
}
