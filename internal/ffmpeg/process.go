package ffmpeg

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Process supervises one FFmpeg subprocess. Stdout is piped to the caller,
// stderr is drained into a bounded ring buffer, stdin is /dev/null.
type Process struct {
	binary string
	argv   []string
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	started time.Time

	stderr *ringBuffer

	done     chan struct{}
	waitErr  error
	exitCode int

	killTimer *time.Timer
}

// NewProcess prepares a supervisor for the given binary and argv.
func NewProcess(binary string, argv []string, logger *slog.Logger) *Process {
	return &Process{
		binary:   binary,
		argv:     argv,
		logger:   logger,
		stderr:   newRingBuffer(stderrRingSize),
		done:     make(chan struct{}),
		exitCode: -1,
	}
}

// Start spawns the subprocess and begins reaping it in the background.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return errors.New("process already started")
	}

	cmd := exec.Command(p.binary, p.argv...)
	cmd.Stderr = p.stderr

	// A manual pipe instead of StdoutPipe so that the concurrent reaper's
	// Wait cannot close the read end while the caller is still draining
	// buffered output.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("opening stdout pipe: %w", err)
	}
	cmd.Stdout = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("starting ffmpeg: %w", err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	p.cmd = cmd
	p.stdout = pr
	p.started = time.Now()

	go p.reap()
	return nil
}

// reap waits for the subprocess, records the exit code, and signals Done.
func (p *Process) reap() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.waitErr = err
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	if p.killTimer != nil {
		p.killTimer.Stop()
	}
	p.mu.Unlock()

	close(p.done)
}

// Stdout returns the subprocess stdout pipe. Valid after Start.
func (p *Process) Stdout() io.ReadCloser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdout
}

// CloseStdout closes the read end of the stdout pipe, releasing its file
// descriptor. Call only after the final read; a reader blocked on the pipe
// would otherwise see a spurious close error.
func (p *Process) CloseStdout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdout != nil {
		_ = p.stdout.Close()
	}
}

// Done is closed once the subprocess has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop asks the subprocess to exit: SIGINT first, SIGKILL after grace.
// It returns once the process has been reaped.
func (p *Process) Stop(grace time.Duration) {
	p.mu.Lock()
	cmd := p.cmd
	if cmd == nil || cmd.Process == nil {
		p.mu.Unlock()
		return
	}

	select {
	case <-p.done:
		p.mu.Unlock()
		return
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		p.logger.Debug("SIGINT failed, killing", "error", err)
		_ = cmd.Process.Kill()
		p.mu.Unlock()
		<-p.done
		return
	}

	if p.killTimer == nil {
		p.killTimer = time.AfterFunc(grace, func() {
			p.logger.Warn("ffmpeg did not exit within grace period, killing",
				"grace", grace)
			_ = cmd.Process.Kill()
		})
	}
	p.mu.Unlock()

	<-p.done
}

// ExitCode returns the subprocess exit code, or -1 before exit.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// WaitErr returns the error from reaping, nil on clean exit. Valid once
// Done is closed.
func (p *Process) WaitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// StderrTail returns the retained tail of the subprocess stderr.
func (p *Process) StderrTail() string {
	return p.stderr.String()
}

// Uptime returns how long the subprocess has been running. The measurement
// uses the monotonic clock carried by time.Time.
func (p *Process) Uptime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started)
}

// ResourceStats is a point-in-time resource usage sample.
type ResourceStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// Stats samples CPU and memory usage of the live subprocess.
func (p *Process) Stats() (*ResourceStats, error) {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil, errors.New("process not started")
	}

	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		return nil, fmt.Errorf("inspecting process: %w", err)
	}

	stats := &ResourceStats{}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	return stats, nil
}
