package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
)

// epgSourceRepo implements EpgSourceRepository using GORM.
type epgSourceRepo struct {
	db *gorm.DB
}

// NewEpgSourceRepository creates a new EpgSourceRepository.
func NewEpgSourceRepository(db *gorm.DB) EpgSourceRepository {
	return &epgSourceRepo{db: db}
}

// Create creates a new EPG source.
func (r *epgSourceRepo) Create(ctx context.Context, source *models.EpgSource) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating EPG source: %w", err)
	}
	return nil
}

// GetByID retrieves an EPG source by ID.
func (r *epgSourceRepo) GetByID(ctx context.Context, id models.ULID) (*models.EpgSource, error) {
	var source models.EpgSource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting EPG source by ID: %w", err)
	}
	return &source, nil
}

// ListAll returns all EPG sources.
func (r *epgSourceRepo) ListAll(ctx context.Context) ([]*models.EpgSource, error) {
	var sources []*models.EpgSource
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("listing EPG sources: %w", err)
	}
	return sources, nil
}

// ListEnabled returns all enabled EPG sources.
func (r *epgSourceRepo) ListEnabled(ctx context.Context) ([]*models.EpgSource, error) {
	var sources []*models.EpgSource
	if err := r.db.WithContext(ctx).
		Where("enabled = ? OR enabled IS NULL", true).
		Order("name ASC").
		Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("listing enabled EPG sources: %w", err)
	}
	return sources, nil
}

// Update updates an existing EPG source.
func (r *epgSourceRepo) Update(ctx context.Context, source *models.EpgSource) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating EPG source: %w", err)
	}
	return nil
}

// RecordSuccess sets last_success and clears last_error.
func (r *epgSourceRepo) RecordSuccess(ctx context.Context, id models.ULID, at time.Time) error {
	at = at.UTC()
	if err := r.db.WithContext(ctx).Model(&models.EpgSource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_success": &at,
			"last_error":   "",
		}).Error; err != nil {
		return fmt.Errorf("recording EPG source success: %w", err)
	}
	return nil
}

// RecordError sets last_error without touching last_success.
func (r *epgSourceRepo) RecordError(ctx context.Context, id models.ULID, message string) error {
	if err := r.db.WithContext(ctx).Model(&models.EpgSource{}).
		Where("id = ?", id).
		Update("last_error", message).Error; err != nil {
		return fmt.Errorf("recording EPG source error: %w", err)
	}
	return nil
}

// Delete deletes an EPG source by ID.
func (r *epgSourceRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.EpgSource{}).Error; err != nil {
		return fmt.Errorf("deleting EPG source: %w", err)
	}
	return nil
}

// Ensure epgSourceRepo implements EpgSourceRepository at compile time.
var _ EpgSourceRepository = (*epgSourceRepo)(nil)
