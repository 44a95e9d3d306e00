package svcdeploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Result is the typed outcome of a single Install call
type Result int

const (
	// ResultFailed indicates the install did not complete; the failure
	// context is now sticky for this Deployer
	ResultFailed Result = iota
	// ResultInstalled indicates a first install completed
	ResultInstalled
	// ResultUpdated indicates an existing service's files changed
	ResultUpdated
	// ResultUnchanged indicates the installed files already matched the source
	ResultUnchanged
	// ResultDeferred indicates files are in place but the supervision
	// daemon is not running; it will adopt the service when it starts
	ResultDeferred
)

// Result string constants
const (
	resultFailedStr    = "failed"
	resultInstalledStr = "installed"
	resultUpdatedStr   = "updated"
	resultUnchangedStr = "unchanged"
	resultDeferredStr  = "deferred"
)

// String returns the string representation of a Result
func (r Result) String() string {
	switch r {
	case ResultInstalled:
		return resultInstalledStr
	case ResultUpdated:
		return resultUpdatedStr
	case ResultUnchanged:
		return resultUnchangedStr
	case ResultDeferred:
		return resultDeferredStr
	case ResultFailed:
		fallthrough
	default:
		return resultFailedStr
	}
}

// InstallRequest describes one service to install or update
type InstallRequest struct {
	// Package is the installing package's identifier; it is the default
	// service name
	Package string
	// PackageDir is the package's own directory; its "service"
	// subdirectory is the default definition source
	PackageDir string
	// Name overrides the service name
	Name string
	// SourceDir overrides the service definition directory
	SourceDir string
}

// Deployer reconciles desired service definitions against the on-disk
// and runtime state for one resolved layout. It is the explicit
// reconciliation context for a run: a failed install marks the Deployer
// and all further Install calls become no-ops, so a multi-service
// package install cannot cascade partial failures. Removal is never
// gated by that mark.
//
// A Deployer is not safe for concurrent use; the caller serializes
// invocations per machine.
type Deployer struct {
	// Layout is the resolved directory topology
	Layout Layout
	// Probe answers daemon and service liveness questions
	Probe *Probe
	// Ledger records the services this tool installed
	Ledger *Ledger
	// Logger receives progress messages
	Logger *slog.Logger
	// ServicesDir, when set, is searched for definitions named after the
	// service before falling back to the package's service subdirectory
	ServicesDir string
	// PollInterval is the pause between adoption poll iterations
	PollInterval time.Duration
	// PollAttempts bounds the adoption poll
	PollAttempts int

	// failed is the sticky per-run failure mark
	failed bool

	// newSupervisor builds control clients; replaced in tests
	newSupervisor func(dir string) (*Supervisor, error)
	// sleep pauses between poll iterations; replaced in tests
	sleep func(ctx context.Context, d time.Duration, wake <-chan struct{}) waitResult
	// remover tears down legacy installs before reinstalling
	remover *Remover
}

// DeployerOption configures a Deployer
type DeployerOption func(*Deployer)

// WithProbe sets the liveness probe
func WithProbe(p *Probe) DeployerOption {
	return func(d *Deployer) {
		d.Probe = p
	}
}

// WithLedger sets the installed-services ledger
func WithLedger(l *Ledger) DeployerOption {
	return func(d *Deployer) {
		d.Ledger = l
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) DeployerOption {
	return func(d *Deployer) {
		d.Logger = logger
	}
}

// WithServicesDir sets the directory searched for service definitions
// before the package's own service subdirectory
func WithServicesDir(dir string) DeployerOption {
	return func(d *Deployer) {
		d.ServicesDir = dir
	}
}

// WithPoll sets the adoption poll interval and attempt count
func WithPoll(interval time.Duration, attempts int) DeployerOption {
	return func(d *Deployer) {
		d.PollInterval = interval
		d.PollAttempts = attempts
	}
}

// WithRemover sets the Remover used to clear legacy installs
func WithRemover(r *Remover) DeployerOption {
	return func(d *Deployer) {
		d.remover = r
	}
}

// NewDeployer creates a Deployer for the given layout
func NewDeployer(layout Layout, opts ...DeployerOption) *Deployer {
	d := &Deployer{
		Layout:       layout,
		Ledger:       NewLedger(DefaultLedgerPath),
		Logger:       slog.Default(),
		PollInterval: DefaultPollInterval,
		PollAttempts: DefaultPollAttempts,
		newSupervisor: func(dir string) (*Supervisor, error) {
			return NewSupervisor(dir)
		},
		sleep: sleepOrWake,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.Probe == nil {
		d.Probe = NewProbe(layout)
	}
	if d.remover == nil {
		d.remover = NewRemover(layout,
			WithRemoverProbe(d.Probe),
			WithRemoverLedger(d.Ledger),
			WithRemoverLogger(d.Logger),
		)
	}

	return d
}

// Failed reports whether an earlier install in this run failed
func (d *Deployer) Failed() bool {
	return d.failed
}

// Install installs or updates one supervised service. The service name
// defaults to the package identifier, the definition source to the
// configured services directory and then the package's service
// subdirectory. On first install the files are copied and the
// supervision daemon is given a bounded window to adopt the new
// directory before an explicit start is issued. On update, run and
// log/run are reconciled independently: a file is copied and its
// supervisor restarted only when its bytes changed.
func (d *Deployer) Install(ctx context.Context, req InstallRequest) (Result, error) {
	if d.failed {
		return ResultFailed, ErrDeployFailed
	}

	name := req.Name
	if name == "" {
		name = req.Package
	}
	if name == "" {
		return d.fail(name, &ConfigError{Reason: "no service name or package identifier"})
	}

	src, err := d.resolveSource(req, name)
	if err != nil {
		return d.fail(name, err)
	}

	installPath := d.Layout.InstallPath(name)

	// A symlink entry is the signature of the legacy link-based install
	// format; tear it down everywhere and proceed as a fresh install.
	if isSymlink(installPath) {
		d.Logger.Info("replacing legacy link-based install", "service", name)
		_ = d.remover.Remove(ctx, name)
	}

	// Record the service before any file mutation: an interrupted
	// install must leave a ledger entry so a later cleanup pass can
	// find the half-installed service.
	if err := d.Ledger.Append(name); err != nil {
		return d.fail(name, err)
	}

	if exists(installPath) {
		return d.update(ctx, name, src)
	}
	return d.firstInstall(ctx, name, src)
}

// fail marks the sticky failure context and logs the reason
func (d *Deployer) fail(name string, err error) (Result, error) {
	d.failed = true
	d.Logger.Error("service install failed", "service", name, "err", err)
	return ResultFailed, err
}

// resolveSource finds the service definition directory for the request
func (d *Deployer) resolveSource(req InstallRequest, name string) (string, error) {
	if req.SourceDir != "" {
		if !exists(req.SourceDir) {
			return "", &ConfigError{Reason: fmt.Sprintf("service source %q does not exist", req.SourceDir)}
		}
		return req.SourceDir, nil
	}

	var candidates []string
	if d.ServicesDir != "" {
		candidates = append(candidates, filepath.Join(d.ServicesDir, name))
	}
	if req.PackageDir != "" {
		candidates = append(candidates, filepath.Join(req.PackageDir, "service"))
	}

	for _, dir := range candidates {
		if exists(dir) {
			return dir, nil
		}
	}
	return "", &ConfigError{Reason: fmt.Sprintf("no service definition found for %q", name)}
}

// firstInstall copies a definition into place and hands it to the daemon
func (d *Deployer) firstInstall(ctx context.Context, name, src string) (Result, error) {
	installPath := d.Layout.InstallPath(name)

	if err := copyServiceDir(src, installPath); err != nil {
		return d.fail(name, err)
	}

	// Under tmpfs the live tree is populated only at boot; mirror the
	// copy there or the daemon never sees it.
	if d.Layout.Topology == TopologyTmpfs {
		if err := copyServiceDir(src, d.Layout.LivePath(name)); err != nil {
			return d.fail(name, err)
		}
	}

	if exists(filepath.Join(installPath, DownFile)) {
		d.Logger.Info("service installed with down marker, not starting", "service", name)
		return ResultInstalled, nil
	}

	if !d.Probe.DaemonUp() {
		d.Logger.Info("supervision daemon not running, service will start with it",
			"service", name)
		return ResultDeferred, nil
	}

	if d.awaitUp(ctx, name) {
		d.Logger.Info("service started", "service", name)
		return ResultInstalled, nil
	}

	// The daemon did not adopt the directory within the window; start
	// the service (and its logger) explicitly.
	livePath := d.Layout.LivePath(name)
	d.start(ctx, name, livePath)

	logPath := filepath.Join(livePath, LogDir)
	if exists(filepath.Join(installPath, LogDir, RunScript)) && !d.Probe.LogUp(name) {
		d.start(ctx, name, logPath)
	}

	return ResultInstalled, nil
}

// awaitUp polls for the daemon to adopt and start the new service,
// waking early when the live directory changes. It reports whether the
// service came up within the window.
func (d *Deployer) awaitUp(ctx context.Context, name string) bool {
	wake, cleanup := watchWake(ctx, d.Layout.LivePath(name))
	defer func() { _ = cleanup() }()

	for i := 0; i < d.PollAttempts; i++ {
		if d.Probe.ServiceUp(name) {
			return true
		}
		if i == 0 {
			d.Logger.Info("waiting for supervision daemon to start service", "service", name)
		}

		// A wake only triggers an early recheck. The remainder of the
		// interval is still slept, so churn in the watched directory
		// (the daemon creating supervise/, lock, status) cannot shrink
		// the window and force a premature explicit start.
		tick := time.Now().Add(d.PollInterval)
	interval:
		for remaining := d.PollInterval; remaining > 0; remaining = time.Until(tick) {
			switch d.sleep(ctx, remaining, wake) {
			case waitCancelled:
				return d.Probe.ServiceUp(name)
			case waitElapsed:
				break interval
			case waitWoken:
				if d.Probe.ServiceUp(name) {
					return true
				}
			}
		}
	}
	return d.Probe.ServiceUp(name)
}

// start issues an explicit up command against a live-tree entry
func (d *Deployer) start(ctx context.Context, name, dir string) {
	sup, err := d.newSupervisor(dir)
	if err != nil {
		d.Logger.Warn("cannot start service, entry not supervised", "service", name, "dir", dir)
		return
	}
	if err := sup.Up(ctx); err != nil {
		d.Logger.Warn("start command failed", "service", name, "dir", dir, "err", err)
	}
}

// update reconciles run and log/run independently against an existing
// install. A differing file is overwritten (and mirrored under tmpfs)
// and the owning supervisor restarted in place; an identical file
// produces no copy and no restart.
func (d *Deployer) update(ctx context.Context, name, src string) (Result, error) {
	mainChanged, err := d.reconcileFile(ctx, name, src, RunScript,
		d.Layout.LivePath(name), d.Probe.ServiceUp(name))
	if err != nil {
		return d.fail(name, err)
	}

	logChanged := false
	if exists(filepath.Join(src, LogDir, RunScript)) {
		logChanged, err = d.reconcileFile(ctx, name, src, filepath.Join(LogDir, RunScript),
			filepath.Join(d.Layout.LivePath(name), LogDir), d.Probe.LogUp(name))
		if err != nil {
			return d.fail(name, err)
		}
	}

	if mainChanged || logChanged {
		d.Logger.Info("service updated", "service", name,
			"run", mainChanged, "log", logChanged)
		return ResultUpdated, nil
	}
	return ResultUnchanged, nil
}

// reconcileFile compares one relative file between source and install,
// copying on difference and restarting the supervisor at liveDir when
// the service is up. It reports whether bytes changed.
func (d *Deployer) reconcileFile(ctx context.Context, name, src, rel, liveDir string, up bool) (bool, error) {
	srcFile := filepath.Join(src, rel)
	dstFile := filepath.Join(d.Layout.InstallPath(name), rel)

	changed, err := syncFile(srcFile, dstFile)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	if d.Layout.Topology == TopologyTmpfs {
		if err := copyFile(srcFile, filepath.Join(d.Layout.LivePath(name), rel)); err != nil {
			return false, err
		}
	}

	if up {
		if err := d.restart(ctx, liveDir); err != nil {
			d.Logger.Warn("restart failed", "service", name, "dir", liveDir, "err", err)
		}
	}
	return true, nil
}

// restart terminates the running process and lets its supervisor
// relaunch it with the new files
func (d *Deployer) restart(ctx context.Context, dir string) error {
	sup, err := d.newSupervisor(dir)
	if err != nil {
		if errors.Is(err, ErrNotSupervised) {
			return nil
		}
		return err
	}
	return sup.Term(ctx)
}
