package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// ClientKind identifies a family of Plex client platforms. Profiles carry one
// argument template per client kind.
type ClientKind string

// Known client kinds.
const (
	ClientWebBrowser    ClientKind = "web_browser"
	ClientAndroidMobile ClientKind = "android_mobile"
	ClientAndroidTV     ClientKind = "android_tv"
	ClientIOSMobile     ClientKind = "ios_mobile"
	ClientAppleTV       ClientKind = "apple_tv"
)

// ValidClientKind reports whether k is a known client kind.
func ValidClientKind(k ClientKind) bool {
	switch k {
	case ClientWebBrowser, ClientAndroidMobile, ClientAndroidTV,
		ClientIOSMobile, ClientAppleTV:
		return true
	}
	return false
}

// ClientArgs is one client kind's FFmpeg argument templates. FFmpegArgs is a
// whitespace-tokenized argv template where the literal token [URL] is replaced
// with the resolved upstream URL. HLSArgs is appended after the -i input pair
// when the upstream is HLS.
type ClientArgs struct {
	FFmpegArgs string `json:"ffmpeg_args"`
	HLSArgs    string `json:"hls_args,omitempty"`
}

// ProfileClients maps client kinds to their argument templates. Stored as a
// JSON text column.
type ProfileClients map[ClientKind]ClientArgs

// Value implements driver.Valuer for database storage.
func (p ProfileClients) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling profile clients: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *ProfileClients) Scan(value any) error {
	if value == nil {
		*p = ProfileClients{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for profile clients: %T", value)
	}
	if len(data) == 0 {
		*p = ProfileClients{}
		return nil
	}
	return json.Unmarshal(data, p)
}

// GormDataType returns the GORM data type for ProfileClients.
func (ProfileClients) GormDataType() string {
	return "text"
}

// FFmpegProfile is a named set of FFmpeg argument templates keyed by client
// kind. Exactly one profile is the default at any time. System profiles ship
// with the application and are immutable and undeletable.
type FFmpegProfile struct {
	BaseModel

	Name string `gorm:"not null;size:255;uniqueIndex" json:"name"`

	// IsDefault marks the profile used when a stream has no pinned profile.
	IsDefault bool `gorm:"not null;default:false;index" json:"is_default"`

	// IsSystem marks built-in profiles that cannot be edited or deleted.
	IsSystem bool `gorm:"not null;default:false" json:"is_system"`

	Clients ProfileClients `gorm:"type:text;not null" json:"clients"`
}

// TableName returns the table name for FFmpegProfile.
func (FFmpegProfile) TableName() string {
	return "ffmpeg_profiles"
}

// ClientArgs returns the argument templates for the given client kind and
// whether the profile defines them.
func (p *FFmpegProfile) ClientArgs(kind ClientKind) (ClientArgs, bool) {
	args, ok := p.Clients[kind]
	return args, ok
}

// Validate performs basic validation on the profile.
func (p *FFmpegProfile) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if len(p.Clients) == 0 {
		return ErrProfileNoClients
	}
	for kind := range p.Clients {
		if !ValidClientKind(kind) {
			return fmt.Errorf("%w: %q", ErrInvalidClientKind, kind)
		}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the profile and generates a ULID.
func (p *FFmpegProfile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate is a GORM hook that validates the profile before update.
func (p *FFmpegProfile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}
