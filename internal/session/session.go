// Package session admits, supervises, and meters streaming sessions. Each
// admitted session owns exactly one FFmpeg subprocess whose stdout is
// copied to the client as MPEG-TS.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/plexbridge/plexbridge/internal/events"
	"github.com/plexbridge/plexbridge/internal/ffmpeg"
	"github.com/plexbridge/plexbridge/internal/models"
)

// State is a session lifecycle state.
type State string

// Session states. A session is created admitting, becomes running once
// FFmpeg is up, drains on any exit trigger, and ends closed.
const (
	StateAdmitting State = "admitting"
	StateRunning   State = "running"
	StateDraining  State = "draining"
	StateClosed    State = "closed"
)

// Stop causes recorded on a session when it ends.
const (
	CauseClientDisconnect   = "client_disconnect"
	CauseUpstreamEOF        = "upstream_eof"
	CauseOperatorTerminated = "operator_terminated"
	CauseShutdown           = "shutdown"
	CauseStartupFailed      = "startup_failed"
)

// Admission errors. The HTTP layer maps these to status codes before any
// body bytes are written.
var (
	ErrNoStream               = errors.New("channel has no enabled stream")
	ErrCapacityFull           = errors.New("maximum concurrent streams reached")
	ErrPerChannelCapacityFull = errors.New("maximum concurrent streams for channel reached")
)

// StartupError reports an FFmpeg process that died within the startup
// window. The stderr tail is kept for diagnostics.
type StartupError struct {
	ExitCode   int
	StderrTail string
}

func (e *StartupError) Error() string {
	return "ffmpeg failed during startup"
}

// Session is one active streaming session. Mutable fields are guarded by mu;
// the manager is the only writer.
type Session struct {
	ID            models.ULID
	ChannelID     models.ULID
	ChannelName   string
	ChannelNumber int
	StreamID      models.ULID
	ClientIP      string
	ClientKind    models.ClientKind
	StartedAt     time.Time

	proc  *ffmpeg.Process
	meter *meter

	mu    sync.Mutex
	state State
	cause string

	// drainOnce makes the running to draining transition idempotent across
	// its possible triggers (disconnect, EOF, operator, shutdown).
	drainOnce sync.Once

	// closed is closed when the session reaches the closed state.
	closed chan struct{}
}

func newSession(channel *models.Channel, stream *models.Stream, clientIP string, kind models.ClientKind) *Session {
	now := time.Now()
	return &Session{
		ID:            models.NewULID(),
		ChannelID:     channel.ID,
		ChannelName:   channel.Name,
		ChannelNumber: channel.Number,
		StreamID:      stream.ID,
		ClientIP:      clientIP,
		ClientKind:    kind,
		StartedAt:     now,
		meter:         newMeter(now),
		state:         StateAdmitting,
		closed:        make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cause returns the recorded stop cause, empty while running.
func (s *Session) Cause() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// beginDrain records the first stop cause and transitions to draining.
// Subsequent calls are no-ops regardless of cause.
func (s *Session) beginDrain(cause string) {
	s.drainOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDraining
		s.cause = cause
		s.mu.Unlock()
	})
}

// Done is closed once the session has fully closed and its subprocess has
// been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Snapshot captures the session for events and the operator API.
func (s *Session) Snapshot() events.SessionSnapshot {
	now := time.Now()
	current, avg, peak := s.meter.Rates(now)

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	snap := events.SessionSnapshot{
		SessionID:   s.ID.String(),
		ChannelID:   s.ChannelID.String(),
		ChannelName: s.ChannelName,
		StreamID:    s.StreamID.String(),
		ClientIP:    s.ClientIP,
		ClientKind:  string(s.ClientKind),
		State:       string(state),
		StartedAt:   s.StartedAt,
		BytesSent:   s.meter.BytesTotal(),
		CurrentBps:  current,
		AvgBps:      avg,
		PeakBps:     peak,
	}
	// Sampling a reaped pid would race with pid reuse, so only sample
	// while the subprocess is known to be alive.
	if s.proc != nil && (state == StateRunning || state == StateDraining) {
		if stats, err := s.proc.Stats(); err == nil {
			snap.CPUPercent = stats.CPUPercent
			snap.RSSBytes = stats.RSSBytes
		}
	}
	return snap
}
