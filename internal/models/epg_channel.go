package models

import (
	"time"

	"gorm.io/gorm"
)

// EpgChannel represents a <channel> entry from an XMLTV source.
// The natural key is (source_id, epg_id).
type EpgChannel struct {
	// SourceID is the foreign key to the parent EpgSource.
	SourceID ULID `gorm:"type:varchar(26);primaryKey" json:"source_id"`

	// EpgID is the XMLTV channel identifier.
	EpgID string `gorm:"primaryKey;size:255" json:"epg_id"`

	// DisplayName is the channel's display name from the source.
	DisplayName string `gorm:"not null;size:512" json:"display_name"`

	// IconURL is an optional channel icon.
	IconURL string `gorm:"size:2048" json:"icon_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Source is the relationship back to the parent EpgSource.
	Source *EpgSource `gorm:"foreignKey:SourceID" json:"source,omitempty"`
}

// TableName returns the table name for EpgChannel.
func (EpgChannel) TableName() string {
	return "epg_channels"
}

// Validate performs basic validation on the EPG channel.
func (c *EpgChannel) Validate() error {
	if c.SourceID.IsZero() {
		return ErrSourceIDRequired
	}
	if c.EpgID == "" {
		return ErrEpgIDRequired
	}
	if c.DisplayName == "" {
		return ErrNameRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the channel.
func (c *EpgChannel) BeforeCreate(tx *gorm.DB) error {
	return c.Validate()
}

// BeforeUpdate is a GORM hook that validates the channel before update.
func (c *EpgChannel) BeforeUpdate(tx *gorm.DB) error {
	return c.Validate()
}
