package repository

import (
	"context"
	"fmt"

	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
)

// streamRepo implements StreamRepository using GORM.
type streamRepo struct {
	db *gorm.DB
}

// NewStreamRepository creates a new StreamRepository.
func NewStreamRepository(db *gorm.DB) StreamRepository {
	return &streamRepo{db: db}
}

// Create creates a new stream.
func (r *streamRepo) Create(ctx context.Context, stream *models.Stream) error {
	if err := r.db.WithContext(ctx).Create(stream).Error; err != nil {
		return fmt.Errorf("creating stream: %w", err)
	}
	return nil
}

// GetByID retrieves a stream by ID.
func (r *streamRepo) GetByID(ctx context.Context, id models.ULID) (*models.Stream, error) {
	var stream models.Stream
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stream).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stream by ID: %w", err)
	}
	return &stream, nil
}

// ListForChannel returns all streams of a channel in insertion order.
// ULIDs are time-ordered, so ordering by ID preserves insertion order.
func (r *streamRepo) ListForChannel(ctx context.Context, channelID models.ULID) ([]*models.Stream, error) {
	var streams []*models.Stream
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("id ASC").
		Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("listing streams for channel: %w", err)
	}
	return streams, nil
}

// FirstEnabledForChannel returns the active upstream for a channel.
func (r *streamRepo) FirstEnabledForChannel(ctx context.Context, channelID models.ULID) (*models.Stream, error) {
	var stream models.Stream
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND (enabled = ? OR enabled IS NULL)", channelID, true).
		Order("id ASC").
		First(&stream).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting first enabled stream: %w", err)
	}
	return &stream, nil
}

// Update updates an existing stream.
func (r *streamRepo) Update(ctx context.Context, stream *models.Stream) error {
	if err := r.db.WithContext(ctx).Save(stream).Error; err != nil {
		return fmt.Errorf("updating stream: %w", err)
	}
	return nil
}

// Delete deletes a stream by ID.
func (r *streamRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Stream{}).Error; err != nil {
		return fmt.Errorf("deleting stream: %w", err)
	}
	return nil
}

// Ensure streamRepo implements StreamRepository at compile time.
var _ StreamRepository = (*streamRepo)(nil)
