// Package repository provides data access interfaces and GORM implementations
// for plexbridge entities.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/plexbridge/plexbridge/internal/models"
)

// Sentinel errors returned by repositories. Get-style lookups return
// (nil, nil) when a row does not exist; ErrNotFound is reserved for
// operations that require the row to be present.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")

	// ErrProfileIsDefault is returned when deleting the default profile.
	ErrProfileIsDefault = errors.New("cannot delete the default profile")

	// ErrProfileIsSystem is returned when modifying or deleting a system profile.
	ErrProfileIsSystem = errors.New("system profiles cannot be modified or deleted")
)

// TimeWindow is a half-open time interval [Start, Stop).
type TimeWindow struct {
	Start time.Time
	Stop  time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.Stop)
}

// ChannelRepository manages Channel entities.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id models.ULID) (*models.Channel, error)
	GetByNumber(ctx context.Context, number int) (*models.Channel, error)
	ListEnabled(ctx context.Context) ([]*models.Channel, error)
	ListAll(ctx context.Context) ([]*models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id models.ULID) error
}

// StreamRepository manages Stream entities.
type StreamRepository interface {
	Create(ctx context.Context, stream *models.Stream) error
	GetByID(ctx context.Context, id models.ULID) (*models.Stream, error)
	// ListForChannel returns all streams of a channel in insertion order.
	ListForChannel(ctx context.Context, channelID models.ULID) ([]*models.Stream, error)
	// FirstEnabledForChannel returns the active upstream for a channel:
	// the first enabled stream in insertion order, or (nil, nil).
	FirstEnabledForChannel(ctx context.Context, channelID models.ULID) (*models.Stream, error)
	Update(ctx context.Context, stream *models.Stream) error
	Delete(ctx context.Context, id models.ULID) error
}

// ProfileRepository manages FFmpegProfile entities. Exactly one profile is
// the default at all times; system profiles are immutable and undeletable.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.FFmpegProfile) error
	GetByID(ctx context.Context, id models.ULID) (*models.FFmpegProfile, error)
	GetDefault(ctx context.Context) (*models.FFmpegProfile, error)
	ListAll(ctx context.Context) ([]*models.FFmpegProfile, error)
	Update(ctx context.Context, profile *models.FFmpegProfile) error
	// SetDefault atomically moves the default flag to the given profile.
	SetDefault(ctx context.Context, id models.ULID) error
	Delete(ctx context.Context, id models.ULID) error
}

// EpgSourceRepository manages EpgSource entities.
type EpgSourceRepository interface {
	Create(ctx context.Context, source *models.EpgSource) error
	GetByID(ctx context.Context, id models.ULID) (*models.EpgSource, error)
	ListAll(ctx context.Context) ([]*models.EpgSource, error)
	ListEnabled(ctx context.Context) ([]*models.EpgSource, error)
	Update(ctx context.Context, source *models.EpgSource) error
	// RecordSuccess sets last_success to now and clears last_error.
	RecordSuccess(ctx context.Context, id models.ULID, at time.Time) error
	// RecordError sets last_error without touching last_success.
	RecordError(ctx context.Context, id models.ULID, message string) error
	Delete(ctx context.Context, id models.ULID) error
}

// EpgChannelRepository manages EpgChannel entities keyed by (source_id, epg_id).
type EpgChannelRepository interface {
	Upsert(ctx context.Context, channel *models.EpgChannel) error
	Get(ctx context.Context, sourceID models.ULID, epgID string) (*models.EpgChannel, error)
	ListForSource(ctx context.Context, sourceID models.ULID) ([]*models.EpgChannel, error)
	DeleteForSource(ctx context.Context, sourceID models.ULID) error
}

// EpgProgramRepository manages EpgProgram entities keyed by
// (source_id, epg_id, start).
type EpgProgramRepository interface {
	// ReplaceWindow deletes programs of (sourceID, epgID) overlapping the
	// window and batch-inserts the replacement rows in one transaction.
	ReplaceWindow(ctx context.Context, sourceID models.ULID, epgID string, window TimeWindow, programs []*models.EpgProgram, batchSize int) error
	// QueryForEmission returns programs for the given EPG IDs overlapping
	// the window, ordered by channel then start time.
	QueryForEmission(ctx context.Context, epgIDs []string, window TimeWindow) ([]*models.EpgProgram, error)
	CountForSource(ctx context.Context, sourceID models.ULID) (int64, error)
	DeleteForSource(ctx context.Context, sourceID models.ULID) error
}

// Repositories bundles all repositories over one database handle.
type Repositories struct {
	Channels    ChannelRepository
	Streams     StreamRepository
	Profiles    ProfileRepository
	EpgSources  EpgSourceRepository
	EpgChannels EpgChannelRepository
	EpgPrograms EpgProgramRepository
}
