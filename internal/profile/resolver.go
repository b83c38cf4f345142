package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/repository"
)

// ErrNoTemplate is returned when no profile supplies argument templates for
// a client kind, not even the default profile's web_browser entry.
var ErrNoTemplate = errors.New("no ffmpeg argument template for client kind")

// Resolver picks the FFmpeg argument templates for a stream and client kind.
type Resolver struct {
	profiles repository.ProfileRepository
}

// NewResolver creates a Resolver over the profile repository.
func NewResolver(profiles repository.ProfileRepository) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve returns the argument templates for the stream and client kind.
// Lookup order: the stream's pinned profile, then the default profile for
// the same kind, then the default profile's web_browser entry.
func (r *Resolver) Resolve(ctx context.Context, stream *models.Stream, kind models.ClientKind) (models.ClientArgs, error) {
	if stream.ProfileID != nil && !stream.ProfileID.IsZero() {
		pinned, err := r.profiles.GetByID(ctx, *stream.ProfileID)
		if err != nil {
			return models.ClientArgs{}, fmt.Errorf("loading pinned profile: %w", err)
		}
		if pinned != nil {
			if args, ok := pinned.ClientArgs(kind); ok {
				return args, nil
			}
		}
	}

	def, err := r.profiles.GetDefault(ctx)
	if err != nil {
		return models.ClientArgs{}, fmt.Errorf("loading default profile: %w", err)
	}
	if def == nil {
		return models.ClientArgs{}, fmt.Errorf("%w: %s (no default profile)", ErrNoTemplate, kind)
	}

	if args, ok := def.ClientArgs(kind); ok {
		return args, nil
	}
	if args, ok := def.ClientArgs(models.ClientWebBrowser); ok {
		return args, nil
	}

	return models.ClientArgs{}, fmt.Errorf("%w: %s", ErrNoTemplate, kind)
}
