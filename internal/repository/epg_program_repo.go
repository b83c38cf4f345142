package repository

import (
	"context"
	"fmt"

	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
)

// epgProgramRepo implements EpgProgramRepository using GORM.
type epgProgramRepo struct {
	db *gorm.DB
}

// NewEpgProgramRepository creates a new EpgProgramRepository.
func NewEpgProgramRepository(db *gorm.DB) EpgProgramRepository {
	return &epgProgramRepo{db: db}
}

// ReplaceWindow deletes programs of (sourceID, epgID) overlapping the window
// and batch-inserts the replacement rows in one transaction. Re-ingesting the
// same document is therefore idempotent.
func (r *epgProgramRepo) ReplaceWindow(ctx context.Context, sourceID models.ULID, epgID string, window TimeWindow, programs []*models.EpgProgram, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Intervals are half-open [start, stop): a program overlaps the
		// window when it starts before the window ends and ends after the
		// window begins.
		if err := tx.
			Where("source_id = ? AND epg_id = ? AND start < ? AND stop > ?",
				sourceID, epgID, window.Stop, window.Start).
			Delete(&models.EpgProgram{}).Error; err != nil {
			return fmt.Errorf("deleting EPG program window: %w", err)
		}

		if len(programs) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(programs, batchSize).Error; err != nil {
			return fmt.Errorf("inserting EPG programs: %w", err)
		}
		return nil
	})
}

// QueryForEmission returns programs for the given EPG IDs overlapping the
// window, ordered by channel then start time.
func (r *epgProgramRepo) QueryForEmission(ctx context.Context, epgIDs []string, window TimeWindow) ([]*models.EpgProgram, error) {
	if len(epgIDs) == 0 {
		return nil, nil
	}

	var programs []*models.EpgProgram
	if err := r.db.WithContext(ctx).
		Where("epg_id IN ? AND start < ? AND stop > ?", epgIDs, window.Stop, window.Start).
		Order("epg_id ASC, start ASC").
		Find(&programs).Error; err != nil {
		return nil, fmt.Errorf("querying EPG programs for emission: %w", err)
	}
	return programs, nil
}

// CountForSource returns the number of programs stored for a source.
func (r *epgProgramRepo) CountForSource(ctx context.Context, sourceID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EpgProgram{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting EPG programs: %w", err)
	}
	return count, nil
}

// DeleteForSource deletes all programs of a source.
func (r *epgProgramRepo) DeleteForSource(ctx context.Context, sourceID models.ULID) error {
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Delete(&models.EpgProgram{}).Error; err != nil {
		return fmt.Errorf("deleting EPG programs: %w", err)
	}
	return nil
}

// Ensure epgProgramRepo implements EpgProgramRepository at compile time.
var _ EpgProgramRepository = (*epgProgramRepo)(nil)
