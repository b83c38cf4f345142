package repository

import (
	"context"
	"fmt"

	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
)

// channelRepo implements ChannelRepository using GORM.
type channelRepo struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepo{db: db}
}

// Create creates a new channel.
func (r *channelRepo) Create(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	return nil
}

// GetByID retrieves a channel by ID.
func (r *channelRepo) GetByID(ctx context.Context, id models.ULID) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting channel by ID: %w", err)
	}
	return &channel, nil
}

// GetByNumber retrieves a channel by its guide number.
func (r *channelRepo) GetByNumber(ctx context.Context, number int) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting channel by number: %w", err)
	}
	return &channel, nil
}

// ListEnabled returns all enabled channels ordered by guide number.
func (r *channelRepo) ListEnabled(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	if err := r.db.WithContext(ctx).
		Where("enabled = ? OR enabled IS NULL", true).
		Order("number ASC").
		Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("listing enabled channels: %w", err)
	}
	return channels, nil
}

// ListAll returns all channels ordered by guide number.
func (r *channelRepo) ListAll(ctx context.Context) ([]*models.Channel, error) {
	var channels []*models.Channel
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return channels, nil
}

// Update updates an existing channel.
func (r *channelRepo) Update(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Save(channel).Error; err != nil {
		return fmt.Errorf("updating channel: %w", err)
	}
	return nil
}

// Delete deletes a channel by ID.
func (r *channelRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Channel{}).Error; err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	return nil
}

// Ensure channelRepo implements ChannelRepository at compile time.
var _ ChannelRepository = (*channelRepo)(nil)
