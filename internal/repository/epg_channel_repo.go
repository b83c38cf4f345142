package repository

import (
	"context"
	"fmt"

	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// epgChannelRepo implements EpgChannelRepository using GORM.
type epgChannelRepo struct {
	db *gorm.DB
}

// NewEpgChannelRepository creates a new EpgChannelRepository.
func NewEpgChannelRepository(db *gorm.DB) EpgChannelRepository {
	return &epgChannelRepo{db: db}
}

// Upsert updates or creates an EPG channel by (source_id, epg_id).
func (r *epgChannelRepo) Upsert(ctx context.Context, channel *models.EpgChannel) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_id"}, {Name: "epg_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "icon_url", "updated_at",
		}),
	}).Create(channel).Error; err != nil {
		return fmt.Errorf("upserting EPG channel: %w", err)
	}
	return nil
}

// Get retrieves an EPG channel by its natural key.
func (r *epgChannelRepo) Get(ctx context.Context, sourceID models.ULID, epgID string) (*models.EpgChannel, error) {
	var channel models.EpgChannel
	if err := r.db.WithContext(ctx).
		Where("source_id = ? AND epg_id = ?", sourceID, epgID).
		First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting EPG channel: %w", err)
	}
	return &channel, nil
}

// ListForSource returns all EPG channels of a source.
func (r *epgChannelRepo) ListForSource(ctx context.Context, sourceID models.ULID) ([]*models.EpgChannel, error) {
	var channels []*models.EpgChannel
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("epg_id ASC").
		Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("listing EPG channels: %w", err)
	}
	return channels, nil
}

// DeleteForSource deletes all EPG channels of a source.
func (r *epgChannelRepo) DeleteForSource(ctx context.Context, sourceID models.ULID) error {
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Delete(&models.EpgChannel{}).Error; err != nil {
		return fmt.Errorf("deleting EPG channels: %w", err)
	}
	return nil
}

// Ensure epgChannelRepo implements EpgChannelRepository at compile time.
var _ EpgChannelRepository = (*epgChannelRepo)(nil)
