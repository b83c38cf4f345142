package models

import (
	"gorm.io/gorm"
)

// Channel represents a lineup entry exposed to Plex as a tuner channel.
type Channel struct {
	BaseModel

	// Number is the guide number. Unique and stable across restarts.
	Number int `gorm:"not null;uniqueIndex" json:"number"`

	// Name is the guide name shown in Plex.
	Name string `gorm:"not null;size:255" json:"name"`

	// Enabled controls whether the channel appears in the lineup.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// LogoURL is an optional channel logo.
	LogoURL string `gorm:"size:2048" json:"logo_url,omitempty"`

	// EpgID links the channel to XMLTV guide data. Empty means no guide.
	EpgID string `gorm:"size:255;index" json:"epg_id,omitempty"`

	// Streams are the upstream sources for this channel. The first enabled
	// stream in insertion order is the active upstream.
	Streams []Stream `gorm:"foreignKey:ChannelID" json:"streams,omitempty"`
}

// TableName returns the table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// IsEnabled returns whether the channel is enabled.
func (c *Channel) IsEnabled() bool {
	return BoolVal(c.Enabled)
}

// Validate performs basic validation on the channel.
func (c *Channel) Validate() error {
	if c.Number < 1 {
		return ErrChannelNumberInvalid
	}
	if c.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the channel and generates a ULID.
func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return c.Validate()
}

// BeforeUpdate is a GORM hook that validates the channel before update.
func (c *Channel) BeforeUpdate(tx *gorm.DB) error {
	return c.Validate()
}
