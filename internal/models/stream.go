package models

import (
	"net/url"
	"strings"

	"gorm.io/gorm"
)

// StreamKind classifies the upstream protocol of a stream URL.
type StreamKind string

// Supported stream kinds.
const (
	StreamKindHLS    StreamKind = "hls"
	StreamKindDASH   StreamKind = "dash"
	StreamKindRTSP   StreamKind = "rtsp"
	StreamKindRTMP   StreamKind = "rtmp"
	StreamKindUDP    StreamKind = "udp"
	StreamKindMPEGTS StreamKind = "mpegts"
	StreamKindHTTP   StreamKind = "http"
	// StreamKindAuto defers classification to the format detector.
	StreamKindAuto StreamKind = "auto"
)

// ValidStreamKind reports whether k is a known stream kind.
func ValidStreamKind(k StreamKind) bool {
	switch k {
	case StreamKindHLS, StreamKindDASH, StreamKindRTSP, StreamKindRTMP,
		StreamKindUDP, StreamKindMPEGTS, StreamKindHTTP, StreamKindAuto:
		return true
	}
	return false
}

// Stream represents one upstream source for a channel.
type Stream struct {
	BaseModel

	// ChannelID is the foreign key to the parent Channel.
	ChannelID ULID `gorm:"type:varchar(26);not null;index" json:"channel_id"`

	// Name labels the stream for operators.
	Name string `gorm:"not null;size:255" json:"name"`

	// URL is the upstream source URL.
	URL string `gorm:"not null;size:2048" json:"url"`

	// Kind is the declared upstream protocol. "auto" means probe.
	Kind StreamKind `gorm:"not null;size:16;default:auto" json:"kind"`

	// Enabled controls whether the stream is a candidate upstream.
	Enabled *bool `gorm:"default:true" json:"enabled"`

	// Auth is an opaque credentials blob passed through to the upstream.
	Auth string `gorm:"type:text" json:"auth,omitempty"`

	// ProfileID optionally pins an FFmpeg profile to this stream.
	ProfileID *ULID `gorm:"type:varchar(26)" json:"profile_id,omitempty"`

	// Channel is the relationship back to the parent Channel.
	Channel *Channel `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
}

// TableName returns the table name for Stream.
func (Stream) TableName() string {
	return "streams"
}

// IsEnabled returns whether the stream is enabled.
func (s *Stream) IsEnabled() bool {
	return BoolVal(s.Enabled)
}

// Validate performs basic validation on the stream.
func (s *Stream) Validate() error {
	if s.ChannelID.IsZero() {
		return ErrChannelIDRequired
	}
	if s.Name == "" {
		return ErrNameRequired
	}
	if s.URL == "" {
		return ErrURLRequired
	}
	if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" {
		return ErrInvalidURL
	}
	if s.Kind == "" {
		s.Kind = StreamKindAuto
	}
	if !ValidStreamKind(StreamKind(strings.ToLower(string(s.Kind)))) {
		return ErrInvalidStreamKind
	}
	s.Kind = StreamKind(strings.ToLower(string(s.Kind)))
	return nil
}

// BeforeCreate is a GORM hook that validates the stream and generates a ULID.
func (s *Stream) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}

// BeforeUpdate is a GORM hook that validates the stream before update.
func (s *Stream) BeforeUpdate(tx *gorm.DB) error {
	return s.Validate()
}
