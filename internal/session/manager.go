package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plexbridge/plexbridge/internal/events"
	"github.com/plexbridge/plexbridge/internal/ffmpeg"
	"github.com/plexbridge/plexbridge/internal/metrics"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/profile"
	"github.com/plexbridge/plexbridge/internal/repository"
	"github.com/plexbridge/plexbridge/internal/upstream"
)

// chunkSize is the read granularity of the streaming loop.
const chunkSize = 64 * 1024

// Config holds session manager tuning. Limits may be changed at runtime and
// affect future admissions only.
type Config struct {
	MaxConcurrent           int
	MaxConcurrentPerChannel int

	// GracePeriod is how long FFmpeg gets between SIGINT and SIGKILL.
	GracePeriod time.Duration

	// StartupWindow classifies early FFmpeg exits as startup failures.
	StartupWindow time.Duration

	// FirstByteTimeout bounds the wait for the first stdout byte.
	FirstByteTimeout time.Duration

	// IdleTimeout tears down a running session after this long without any
	// upstream data. Zero disables the idle check.
	IdleTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
	if c.StartupWindow <= 0 {
		c.StartupWindow = 2 * time.Second
	}
	if c.FirstByteTimeout <= 0 {
		c.FirstByteTimeout = 10 * time.Second
	}
}

// Manager admits and supervises streaming sessions. The admission mutex
// guards the session table and both capacity counters so that concurrent
// requests cannot each observe free capacity.
type Manager struct {
	streams  repository.StreamRepository
	detector *upstream.Detector
	resolver *profile.Resolver
	binary   *ffmpeg.BinaryDetector
	bus      *events.Bus
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu            sync.Mutex
	cfg           Config
	sessions      map[string]*Session
	perChannel    map[models.ULID]int
	shuttingDown  bool
	sessionsTotal atomic.Int64
	bytesTotal    atomic.Int64
}

// NewManager creates a session manager.
func NewManager(
	streams repository.StreamRepository,
	detector *upstream.Detector,
	resolver *profile.Resolver,
	binary *ffmpeg.BinaryDetector,
	bus *events.Bus,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *Manager {
	cfg.applyDefaults()
	return &Manager{
		streams:    streams,
		detector:   detector,
		resolver:   resolver,
		binary:     binary,
		bus:        bus,
		metrics:    m,
		logger:     observability.WithComponent(logger, "session"),
		cfg:        cfg,
		sessions:   make(map[string]*Session),
		perChannel: make(map[models.ULID]int),
	}
}

// SetLimits updates the concurrency limits. Existing sessions are never
// preempted; the new limits apply to future admissions.
func (m *Manager) SetLimits(maxConcurrent, maxPerChannel int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxConcurrent > 0 {
		m.cfg.MaxConcurrent = maxConcurrent
	}
	if maxPerChannel > 0 {
		m.cfg.MaxConcurrentPerChannel = maxPerChannel
	}
}

// Open admits a session for the channel and spawns its FFmpeg subprocess.
// On success the session is running and ready for Stream. Admission and
// spawn errors are returned synchronously, before any response bytes.
func (m *Manager) Open(ctx context.Context, channel *models.Channel, clientIP string, kind models.ClientKind) (*Session, error) {
	stream, err := m.streams.FirstEnabledForChannel(ctx, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up streams: %w", err)
	}
	if stream == nil {
		return nil, ErrNoStream
	}

	sess, err := m.admit(channel, stream, clientIP, kind)
	if err != nil {
		return nil, err
	}

	if err := m.spawn(ctx, sess, stream, kind); err != nil {
		m.abort(sess)
		return nil, err
	}

	sess.setState(StateRunning)
	m.sessionsTotal.Add(1)
	m.metrics.SessionsTotal.Inc()
	m.bus.Publish(events.StreamStartedEvent{
		Session:   sess.Snapshot(),
		Timestamp: time.Now().UTC(),
	})
	m.logger.Info("session started",
		"session_id", sess.ID.String(),
		"channel", channel.Number,
		"client_ip", clientIP,
		"client_kind", kind)
	return sess, nil
}

// admit checks capacity and inserts the session, all under one mutex.
func (m *Manager) admit(channel *models.Channel, stream *models.Stream, clientIP string, kind models.ClientKind) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shuttingDown {
		return nil, ErrCapacityFull
	}
	if len(m.sessions) >= m.cfg.MaxConcurrent {
		return nil, ErrCapacityFull
	}
	if m.perChannel[channel.ID] >= m.cfg.MaxConcurrentPerChannel {
		return nil, ErrPerChannelCapacityFull
	}

	sess := newSession(channel, stream, clientIP, kind)
	m.sessions[sess.ID.String()] = sess
	m.perChannel[channel.ID]++

	m.metrics.ActiveSessions.Inc()
	m.metrics.ActiveSessionsPerChannel.
		WithLabelValues(strconv.Itoa(channel.Number)).Inc()
	return sess, nil
}

// spawn resolves the upstream and argv and starts FFmpeg.
func (m *Manager) spawn(ctx context.Context, sess *Session, stream *models.Stream, kind models.ClientKind) error {
	res, err := m.detector.Resolve(ctx, stream)
	if err != nil {
		return err
	}

	args, err := m.resolver.Resolve(ctx, stream, kind)
	if err != nil {
		return err
	}

	argv, err := ffmpeg.BuildArgv(args.FFmpegArgs, args.HLSArgs, res.EffectiveURL, res.Kind == models.StreamKindHLS)
	if err != nil {
		return fmt.Errorf("building ffmpeg argv: %w", err)
	}

	bin, err := m.binary.Path()
	if err != nil {
		return fmt.Errorf("locating ffmpeg: %w", err)
	}

	proc := ffmpeg.NewProcess(bin, argv, m.logger)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("spawning ffmpeg: %w", err)
	}

	sess.proc = proc
	return nil
}

// abort tears down a session that never reached running. No events are
// published; the session never started.
func (m *Manager) abort(sess *Session) {
	m.remove(sess)
	sess.setState(StateClosed)
	close(sess.closed)
}

// remove deletes the session from the table and decrements both counters.
func (m *Manager) remove(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.ID.String()]; !ok {
		return
	}
	delete(m.sessions, sess.ID.String())
	if m.perChannel[sess.ChannelID] > 0 {
		m.perChannel[sess.ChannelID]--
	}
	if m.perChannel[sess.ChannelID] == 0 {
		delete(m.perChannel, sess.ChannelID)
	}

	m.metrics.ActiveSessions.Dec()
	m.metrics.ActiveSessionsPerChannel.
		WithLabelValues(strconv.Itoa(sess.ChannelNumber)).Dec()
}

// trigger records the first stop cause and begins stopping the subprocess,
// which unblocks the streaming loop's stdout read.
func (m *Manager) trigger(sess *Session, cause string) {
	sess.beginDrain(cause)
	if sess.proc != nil {
		go sess.proc.Stop(m.gracePeriod())
	}
}

func (m *Manager) gracePeriod() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.GracePeriod
}

func (m *Manager) startupWindow() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.StartupWindow
}

// Stream copies FFmpeg stdout to w in fixed-size chunks until an exit
// trigger fires, then drains and closes the session. Callers must have
// written response headers before calling; mid-stream errors only end the
// body.
func (m *Manager) Stream(ctx context.Context, sess *Session, w io.Writer) error {
	defer m.close(sess)

	// Client disconnect and operator cancellation arrive via ctx.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			m.trigger(sess, CauseClientDisconnect)
		case <-watchDone:
		}
	}()

	var sawFirstByte atomic.Bool
	firstByteTimer := time.AfterFunc(m.cfg.FirstByteTimeout, func() {
		if !sawFirstByte.Load() {
			m.trigger(sess, CauseStartupFailed)
		}
	})
	defer firstByteTimer.Stop()

	var idleTimer *time.Timer
	if m.cfg.IdleTimeout > 0 {
		idleTimer = time.AfterFunc(m.cfg.IdleTimeout, func() {
			m.trigger(sess, CauseUpstreamEOF)
		})
		defer idleTimer.Stop()
	}

	flusher, canFlush := w.(interface{ Flush() })

	stdout := sess.proc.Stdout()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := stdout.Read(buf)
		if n > 0 {
			if !sawFirstByte.Swap(true) {
				firstByteTimer.Stop()
			}
			if idleTimer != nil {
				idleTimer.Reset(m.cfg.IdleTimeout)
			}
			if werr := writeAll(w, buf[:n]); werr != nil {
				m.trigger(sess, CauseClientDisconnect)
				break
			}
			if canFlush {
				flusher.Flush()
			}
			now := time.Now()
			sess.meter.Add(int64(n), now)
			m.bytesTotal.Add(int64(n))
			m.metrics.BytesSentTotal.Add(float64(n))
		}
		if rerr != nil {
			m.trigger(sess, CauseUpstreamEOF)
			break
		}
	}

	return nil
}

// writeAll tolerates short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// close drains and reaps the session: stop FFmpeg, capture diagnostics,
// emit the stopped event, release capacity. Runs exactly once per session
// on every exit path.
func (m *Manager) close(sess *Session) {
	sess.beginDrain(CauseUpstreamEOF)
	sess.proc.Stop(m.gracePeriod())
	sess.proc.CloseStdout()

	uptime := sess.proc.Uptime()
	exitCode := sess.proc.ExitCode()
	stderrTail := sess.proc.StderrTail()

	cause := sess.Cause()
	// An early unclean exit is a startup failure rather than upstream EOF.
	if cause == CauseUpstreamEOF && uptime < m.startupWindow() && exitCode != 0 {
		sess.mu.Lock()
		sess.cause = CauseStartupFailed
		sess.mu.Unlock()
		cause = CauseStartupFailed
	}

	if cause == CauseStartupFailed {
		m.metrics.RecordSessionError("StartupFailed")
		m.logger.Error("ffmpeg failed during startup",
			"session_id", sess.ID.String(),
			"exit_code", exitCode,
			"stderr_tail", tailForLog(stderrTail))
	} else {
		m.logger.Info("session stopped",
			"session_id", sess.ID.String(),
			"cause", cause,
			"exit_code", exitCode,
			"bytes_sent", sess.meter.BytesTotal(),
			"uptime", uptime)
	}

	sess.setState(StateClosed)
	snapshot := sess.Snapshot()
	m.remove(sess)
	close(sess.closed)

	m.bus.Publish(events.StreamStoppedEvent{
		Session:   snapshot,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	})
}

// tailForLog trims stderr tails to a loggable size.
func tailForLog(s string) string {
	const max = 1024
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

// Terminate asks a session to stop. Terminating an unknown or already
// closed session is a successful no-op.
func (m *Manager) Terminate(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	m.trigger(sess, CauseOperatorTerminated)
	return nil
}

// List returns snapshots of all active sessions.
func (m *Manager) List() []events.SessionSnapshot {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]events.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run publishes bandwidth updates every second and metrics updates every
// five seconds until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	bandwidth := time.NewTicker(time.Second)
	defer bandwidth.Stop()
	metricsTick := time.NewTicker(5 * time.Second)
	defer metricsTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-bandwidth.C:
			snapshots := m.List()
			if len(snapshots) == 0 {
				continue
			}
			var total float64
			for _, s := range snapshots {
				total += s.CurrentBps
			}
			m.bus.Publish(events.BandwidthUpdateEvent{
				Sessions:  snapshots,
				TotalBps:  total,
				Timestamp: time.Now().UTC(),
			})
		case <-metricsTick.C:
			m.bus.Publish(events.MetricsUpdateEvent{
				ActiveSessions: m.Count(),
				SessionsTotal:  m.sessionsTotal.Load(),
				BytesSentTotal: m.bytesTotal.Load(),
				Timestamp:      time.Now().UTC(),
			})
		}
	}
}

// Shutdown stops every active session and waits for them to close, or for
// ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shuttingDown = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.trigger(s, CauseShutdown)
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
