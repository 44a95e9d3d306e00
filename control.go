package svcdeploy

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axondata/go-svcdeploy/internal/unix"
)

// Supervisor provides control and status operations for a single
// supervised service. It communicates directly with the service's
// supervise process through its control socket/FIFO and status file,
// without shelling out to svc or svstat. It is always addressed at a
// live-tree service directory: that is the path the supervision daemon
// keys its supervise processes on.
type Supervisor struct {
	// ServiceDir is the canonical path to the live service directory
	ServiceDir string

	// DialTimeout is the timeout for establishing control socket connections
	DialTimeout time.Duration

	// WriteTimeout is the timeout for writing control commands
	WriteTimeout time.Duration

	// BackoffMin is the minimum duration between retry attempts
	BackoffMin time.Duration

	// BackoffMax is the maximum duration between retry attempts
	BackoffMax time.Duration

	// MaxAttempts is the maximum number of retry attempts for control operations
	MaxAttempts int

	// mu protects concurrent access to send operations
	mu sync.Mutex
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithDialTimeout sets the timeout for control socket connections
func WithDialTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.DialTimeout = d
	}
}

// WithWriteTimeout sets the timeout for control write operations
func WithWriteTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.WriteTimeout = d
	}
}

// WithBackoff sets the minimum and maximum backoff durations for retries
func WithBackoff(minBackoff, maxBackoff time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.BackoffMin = minBackoff
		s.BackoffMax = maxBackoff
	}
}

// WithMaxAttempts sets the maximum number of retry attempts
func WithMaxAttempts(n int) SupervisorOption {
	return func(s *Supervisor) {
		s.MaxAttempts = n
	}
}

// NewSupervisor creates a Supervisor for the specified live service
// directory. It verifies the service has a supervise directory and
// applies any provided options.
func NewSupervisor(serviceDir string, opts ...SupervisorOption) (*Supervisor, error) {
	absPath, err := filepath.Abs(serviceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving service dir: %w", err)
	}

	s := &Supervisor{
		ServiceDir:   absPath,
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		BackoffMin:   DefaultBackoffMin,
		BackoffMax:   DefaultBackoffMax,
		MaxAttempts:  DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(s)
	}

	superviseDir := filepath.Join(s.ServiceDir, SuperviseDir)
	if _, err := os.Stat(superviseDir); os.IsNotExist(err) {
		return nil, &OpError{Op: OpUnknown, Path: superviseDir, Err: ErrNotSupervised}
	}

	return s, nil
}

// send writes a single control byte to the service's control socket/FIFO.
// It implements exponential backoff and retries for transient failures.
func (s *Supervisor) send(ctx context.Context, op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	controlPath := filepath.Join(s.ServiceDir, SuperviseDir, ControlFile)
	cmd := op.Byte()

	var lastErr error
	backoff := s.BackoffMin

	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > s.BackoffMax {
				backoff = s.BackoffMax
			}
		}

		conn, err := net.DialTimeout("unix", controlPath, s.DialTimeout)
		if err == nil {
			defer func() { _ = conn.Close() }()

			if s.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			}

			if _, err := conn.Write([]byte{cmd}); err == nil {
				return nil
			}
			lastErr = err
			continue
		}

		file, err := os.OpenFile(controlPath, os.O_WRONLY|unix.ONonblock, 0)
		if err == nil {
			defer func() { _ = file.Close() }()

			if _, err := file.Write([]byte{cmd}); err == nil {
				return nil
			}
			lastErr = err
			continue
		}

		lastErr = err
	}

	if lastErr != nil {
		return &OpError{Op: op, Path: controlPath, Err: lastErr}
	}
	return &OpError{Op: op, Path: controlPath, Err: ErrControlNotReady}
}

// Up starts the service (sets want up)
func (s *Supervisor) Up(ctx context.Context) error {
	return s.send(ctx, OpUp)
}

// Down stops the service and keeps it down (sets want down)
func (s *Supervisor) Down(ctx context.Context) error {
	return s.send(ctx, OpDown)
}

// Term sends SIGTERM to the service process. While want remains up the
// supervisor relaunches the service, so this acts as a restart in place.
func (s *Supervisor) Term(ctx context.Context) error {
	return s.send(ctx, OpTerm)
}

// Kill sends SIGKILL to the service process
func (s *Supervisor) Kill(ctx context.Context) error {
	return s.send(ctx, OpKill)
}

// ExitSupervise terminates the supervise process for this service
func (s *Supervisor) ExitSupervise(ctx context.Context) error {
	return s.send(ctx, OpExit)
}

// Status reads and decodes the service's binary status file.
func (s *Supervisor) Status(_ context.Context) (Status, error) {
	return readStatusFile(s.ServiceDir)
}

// readStatusFile reads and decodes the supervise status record beneath a
// service directory.
func readStatusFile(serviceDir string) (Status, error) {
	statusPath := filepath.Join(serviceDir, SuperviseDir, StatusFile)

	file, err := os.Open(statusPath)
	if err != nil {
		return Status{}, &OpError{Op: OpStatus, Path: statusPath, Err: err}
	}
	defer func() { _ = file.Close() }()

	var buf [StatusFileSize]byte
	n, err := io.ReadFull(file, buf[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		return Status{}, &OpError{Op: OpStatus, Path: statusPath, Err: err}
	}
	if n != StatusFileSize {
		return Status{}, &OpError{Op: OpStatus, Path: statusPath, Err: ErrDecode}
	}

	status, err := decodeStatus(buf[:])
	if err != nil {
		return Status{}, &OpError{Op: OpStatus, Path: statusPath, Err: err}
	}

	return status, nil
}
