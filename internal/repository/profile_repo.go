package repository

import (
	"context"
	"fmt"

	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
)

// profileRepo implements ProfileRepository using GORM.
type profileRepo struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

// Create creates a new profile. If it is marked default, the previous default
// is unset in the same transaction.
func (r *profileRepo) Create(ctx context.Context, profile *models.FFmpegProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if profile.IsDefault {
			if err := unsetDefault(tx); err != nil {
				return err
			}
		}
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a profile by ID.
func (r *profileRepo) GetByID(ctx context.Context, id models.ULID) (*models.FFmpegProfile, error) {
	var profile models.FFmpegProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting profile by ID: %w", err)
	}
	return &profile, nil
}

// GetDefault retrieves the default profile.
func (r *profileRepo) GetDefault(ctx context.Context) (*models.FFmpegProfile, error) {
	var profile models.FFmpegProfile
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting default profile: %w", err)
	}
	return &profile, nil
}

// ListAll returns all profiles ordered by name.
func (r *profileRepo) ListAll(ctx context.Context) ([]*models.FFmpegProfile, error) {
	var profiles []*models.FFmpegProfile
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

// Update updates an existing profile. System profiles are immutable.
func (r *profileRepo) Update(ctx context.Context, profile *models.FFmpegProfile) error {
	existing, err := r.GetByID(ctx, profile.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if existing.IsSystem {
		return ErrProfileIsSystem
	}
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// SetDefault atomically moves the default flag to the given profile. The
// unset and set run in one transaction so exactly one default exists at all
// times.
func (r *profileRepo) SetDefault(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.FFmpegProfile
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return fmt.Errorf("getting profile: %w", err)
		}

		if err := unsetDefault(tx); err != nil {
			return err
		}

		if err := tx.Model(&models.FFmpegProfile{}).
			Where("id = ?", id).
			Update("is_default", true).Error; err != nil {
			return fmt.Errorf("setting default profile: %w", err)
		}
		return nil
	})
}

// Delete deletes a profile. The default profile and system profiles are
// protected.
func (r *profileRepo) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.FFmpegProfile
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return fmt.Errorf("getting profile: %w", err)
		}

		if profile.IsSystem {
			return ErrProfileIsSystem
		}
		if profile.IsDefault {
			return ErrProfileIsDefault
		}

		if err := tx.Where("id = ?", id).Delete(&models.FFmpegProfile{}).Error; err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		return nil
	})
}

// unsetDefault clears the default flag on whichever profile carries it.
func unsetDefault(tx *gorm.DB) error {
	if err := tx.Model(&models.FFmpegProfile{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error; err != nil {
		return fmt.Errorf("unsetting default profile: %w", err)
	}
	return nil
}

// Ensure profileRepo implements ProfileRepository at compile time.
var _ ProfileRepository = (*profileRepo)(nil)
