package models

import (
	"time"

	"gorm.io/gorm"
)

// EpgProgram represents a single <programme> entry from an XMLTV source.
// The natural key is (source_id, epg_id, start). Program intervals are
// half-open [start, stop).
type EpgProgram struct {
	// SourceID is the foreign key to the parent EpgSource.
	SourceID ULID `gorm:"type:varchar(26);primaryKey" json:"source_id"`

	// EpgID is the XMLTV channel identifier this program belongs to.
	EpgID string `gorm:"primaryKey;size:255;index:idx_epg_channel_time" json:"epg_id"`

	// Start is the program start time, stored UTC.
	Start time.Time `gorm:"primaryKey;index:idx_epg_channel_time" json:"start"`

	// Stop is the program end time, stored UTC.
	Stop time.Time `gorm:"not null;index" json:"stop"`

	// Title is the program title.
	Title string `gorm:"not null;size:512" json:"title"`

	// Description is the full program description.
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Category is the program genre/category.
	Category string `gorm:"size:255" json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Source is the relationship back to the parent EpgSource.
	Source *EpgSource `gorm:"foreignKey:SourceID" json:"source,omitempty"`
}

// TableName returns the table name for EpgProgram.
func (EpgProgram) TableName() string {
	return "epg_programs"
}

// Duration returns the program duration.
func (p *EpgProgram) Duration() time.Duration {
	return p.Stop.Sub(p.Start)
}

// IsOnAir returns true if the program is currently airing.
func (p *EpgProgram) IsOnAir() bool {
	now := time.Now()
	return !now.Before(p.Start) && now.Before(p.Stop)
}

// Validate performs basic validation on the EPG program.
func (p *EpgProgram) Validate() error {
	if p.SourceID.IsZero() {
		return ErrSourceIDRequired
	}
	if p.EpgID == "" {
		return ErrEpgIDRequired
	}
	if p.Start.IsZero() {
		return ErrStartTimeRequired
	}
	if p.Stop.IsZero() {
		return ErrEndTimeRequired
	}
	if p.Title == "" {
		return ErrTitleRequired
	}
	if !p.Stop.After(p.Start) {
		return ErrInvalidTimeRange
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the program.
func (p *EpgProgram) BeforeCreate(tx *gorm.DB) error {
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the program before update.
func (p *EpgProgram) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}
