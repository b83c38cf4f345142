package models

import (
	"net/url"
	"time"

	"gorm.io/gorm"
)

// EpgSource represents an XMLTV guide data source fetched on a schedule.
type EpgSource struct {
	BaseModel

	Name string `gorm:"not null;size:255" json:"name"`

	// URL is the XMLTV document location. Gzip, bzip2 and xz compressed
	// documents are handled transparently.
	URL string `gorm:"not null;size:2048" json:"url"`

	// RefreshInterval is the time between ingest cycles.
	RefreshInterval time.Duration `gorm:"not null" json:"refresh_interval"`

	// CronExpression optionally overrides RefreshInterval with a cron
	// schedule. Empty means interval-based scheduling.
	CronExpression string `gorm:"size:100" json:"cron_expression,omitempty"`

	Enabled *bool `gorm:"default:true" json:"enabled"`

	// LastSuccess is the completion time of the last successful ingest.
	LastSuccess *time.Time `json:"last_success,omitempty"`

	// LastError holds the failure reason of the last ingest attempt.
	// Cleared on success.
	LastError string `gorm:"type:text" json:"last_error,omitempty"`
}

// TableName returns the table name for EpgSource.
func (EpgSource) TableName() string {
	return "epg_sources"
}

// IsEnabled returns whether the source is enabled.
func (s *EpgSource) IsEnabled() bool {
	return BoolVal(s.Enabled)
}

// Validate performs basic validation on the EPG source.
func (s *EpgSource) Validate() error {
	if s.Name == "" {
		return ErrNameRequired
	}
	if s.URL == "" {
		return ErrURLRequired
	}
	if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" {
		return ErrInvalidURL
	}
	if s.RefreshInterval <= 0 {
		return ErrRefreshIntervalInvalid
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the source and generates a ULID.
func (s *EpgSource) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}

// BeforeUpdate is a GORM hook that validates the source before update.
func (s *EpgSource) BeforeUpdate(tx *gorm.DB) error {
	return s.Validate()
}
