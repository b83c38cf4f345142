// Package events provides the in-process pub/sub bus for session lifecycle
// and metrics notifications.
package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeStreamStarted uint32 = iota + 1
	TypeStreamStopped
	TypeBandwidthUpdate
	TypeSettingsChanged
	TypeMetricsUpdate
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionSnapshot is a point-in-time view of one active session, carried by
// bandwidth updates and session lifecycle events.
type SessionSnapshot struct {
	SessionID   string    `json:"session_id"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name,omitempty"`
	StreamID    string    `json:"stream_id"`
	ClientIP    string    `json:"client_ip"`
	ClientKind  string    `json:"client_kind"`
	State       string    `json:"state"`
	StartedAt   time.Time `json:"started_at"`
	BytesSent   int64     `json:"bytes_sent"`
	CurrentBps  float64   `json:"current_bps"`
	AvgBps      float64   `json:"avg_bps"`
	PeakBps     float64   `json:"peak_bps"`

	// Resource usage of the session's FFmpeg subprocess, sampled at
	// snapshot time. Zero once the process has exited.
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// StreamStartedEvent is published when a session transitions to running.
type StreamStartedEvent struct {
	Session   SessionSnapshot `json:"session"`
	Timestamp time.Time       `json:"timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamStoppedEvent is published exactly once per session, after reap.
type StreamStoppedEvent struct {
	Session   SessionSnapshot `json:"session"`
	Cause     string          `json:"cause"`
	Timestamp time.Time       `json:"timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// BandwidthUpdateEvent carries a snapshot of all active sessions. Published
// every second while any session is active.
type BandwidthUpdateEvent struct {
	Sessions  []SessionSnapshot `json:"sessions"`
	TotalBps  float64           `json:"total_bps"`
	Timestamp time.Time         `json:"timestamp"`
}

// Type returns the event type identifier for BandwidthUpdateEvent.
func (e BandwidthUpdateEvent) Type() uint32 { return TypeBandwidthUpdate }

// SettingsChangedEvent is published when runtime settings change. Changed
// concurrency limits affect future admissions only.
type SettingsChangedEvent struct {
	Keys      []string  `json:"keys"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }

// MetricsUpdateEvent carries process-wide counters. Published every 5 s.
type MetricsUpdateEvent struct {
	ActiveSessions int       `json:"active_sessions"`
	SessionsTotal  int64     `json:"sessions_total"`
	BytesSentTotal int64     `json:"bytes_sent_total"`
	Timestamp      time.Time `json:"timestamp"`
}

// Type returns the event type identifier for MetricsUpdateEvent.
func (e MetricsUpdateEvent) Type() uint32 { return TypeMetricsUpdate }
