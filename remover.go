package svcdeploy

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Remover tears down a named service across every directory the layout
// involves, stops its daemon-level supervision, and reaps lingering
// supervise and logger processes. Every step is best-effort: a missing
// directory, process, or ledger line is an already-satisfied goal, not
// an error.
type Remover struct {
	// Layout is the resolved directory topology
	Layout Layout
	// Probe answers daemon and service liveness questions
	Probe *Probe
	// Ledger records the services this tool installed
	Ledger *Ledger
	// Logger receives progress messages
	Logger *slog.Logger

	// newSupervisor builds control clients; replaced in tests
	newSupervisor func(dir string) (*Supervisor, error)
	// kill delivers a signal to a pid; replaced in tests
	kill func(pid int, sig unix.Signal) error
}

// RemoverOption configures a Remover
type RemoverOption func(*Remover)

// WithRemoverProbe sets the liveness probe
func WithRemoverProbe(p *Probe) RemoverOption {
	return func(r *Remover) {
		r.Probe = p
	}
}

// WithRemoverLedger sets the installed-services ledger
func WithRemoverLedger(l *Ledger) RemoverOption {
	return func(r *Remover) {
		r.Ledger = l
	}
}

// WithRemoverLogger sets the logger
func WithRemoverLogger(logger *slog.Logger) RemoverOption {
	return func(r *Remover) {
		r.Logger = logger
	}
}

// NewRemover creates a Remover for the given layout
func NewRemover(layout Layout, opts ...RemoverOption) *Remover {
	r := &Remover{
		Layout: layout,
		Ledger: NewLedger(DefaultLedgerPath),
		Logger: slog.Default(),
		newSupervisor: func(dir string) (*Supervisor, error) {
			return NewSupervisor(dir)
		},
		kill: unix.Kill,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.Probe == nil {
		r.Probe = NewProbe(layout)
	}

	return r
}

// Remove erases all trace of the named service: supervision is stopped,
// the authoritative directory and the topology's mirror copy are
// deleted, recorded supervise/logger pids are killed, and the ledger
// entry is dropped. An empty name is a no-op. Partial failures are
// aggregated; removal never stops at the first problem.
func (r *Remover) Remove(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}

	merr := &MultiError{}
	livePath := r.Layout.LivePath(name)

	if r.Probe.DaemonUp() {
		if r.Probe.ServiceUp(name) {
			merr.Add(r.stop(ctx, livePath))
		}
		logPath := filepath.Join(livePath, LogDir)
		if st, err := readStatusFile(logPath); err == nil && st.State == StateRunning {
			merr.Add(r.stop(ctx, logPath))
		}
	}

	// The live directory entry is the key the daemon uses to associate
	// processes with services; snapshot before any removal.
	pids := r.Probe.ProcessSnapshot(name)

	installPath := r.Layout.InstallPath(name)
	if err := os.RemoveAll(installPath); err != nil {
		merr.Add(err)
	}
	if mirror := r.Layout.MirrorPath(name); mirror != "" && mirror != installPath {
		if err := os.RemoveAll(mirror); err != nil {
			merr.Add(err)
		}
	}

	for _, pid := range pids {
		if err := r.kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			merr.Add(err)
		}
	}

	if err := r.Ledger.Remove(name); err != nil {
		merr.Add(err)
	}

	if err := merr.Err(); err != nil {
		r.Logger.Warn("service removal finished with errors", "service", name, "err", err)
		return err
	}
	r.Logger.Info("service removed", "service", name)
	return nil
}

// stop requests down (no restart) on the supervise entry at dir.
// An entry without a supervise directory has nothing to stop.
func (r *Remover) stop(ctx context.Context, dir string) error {
	sup, err := r.newSupervisor(dir)
	if err != nil {
		if errors.Is(err, ErrNotSupervised) {
			return nil
		}
		return err
	}
	return sup.Down(ctx)
}
