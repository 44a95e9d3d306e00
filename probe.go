package svcdeploy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Process role names in the supervision tree
const (
	// superviseProcName is the per-service supervisor process name
	superviseProcName = "supervise"

	// loggerProcName is the logger process name; it runs inside a
	// pipeline whose controlling parent is a supervise process
	loggerProcName = "multilog"
)

// ProcessInfo is one entry from a process-table snapshot
type ProcessInfo struct {
	// PID is the process id
	PID int
	// PPID is the parent process id
	PPID int
	// Name is the executable name
	Name string
	// Cmdline is the full command line, one element per argument
	Cmdline []string
}

// ProcessLister enumerates the current process table
type ProcessLister func() ([]ProcessInfo, error)

// listProcesses is the default ProcessLister, backed by gopsutil.
func listProcesses() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	out := make([]ProcessInfo, 0, len(procs))
	for _, pr := range procs {
		name, err := pr.Name()
		if err != nil {
			// Process exited between enumeration and inspection
			continue
		}
		ppid, _ := pr.Ppid()
		cmdline, _ := pr.CmdlineSlice()

		out = append(out, ProcessInfo{
			PID:     int(pr.Pid),
			PPID:    int(ppid),
			Name:    name,
			Cmdline: cmdline,
		})
	}
	return out, nil
}

// Probe answers liveness questions about the supervision daemon and
// individual services, using the live service tree as ground truth.
// Its predicates never block; callers poll them.
type Probe struct {
	// LiveDir is the live service tree path
	LiveDir string
	// DaemonName is the exact process name of the supervision daemon
	DaemonName string
	// ListProcesses enumerates the process table; defaults to gopsutil
	ListProcesses ProcessLister
}

// ProbeOption configures a Probe
type ProbeOption func(*Probe)

// WithDaemonName sets the exact process name of the supervision daemon
func WithDaemonName(name string) ProbeOption {
	return func(p *Probe) {
		p.DaemonName = name
	}
}

// WithProcessLister sets the process table enumerator
func WithProcessLister(fn ProcessLister) ProbeOption {
	return func(p *Probe) {
		p.ListProcesses = fn
	}
}

// NewProbe creates a Probe for the given layout's live tree
func NewProbe(layout Layout, opts ...ProbeOption) *Probe {
	p := &Probe{
		LiveDir:       layout.LiveDir,
		DaemonName:    DefaultDaemonName,
		ListProcesses: listProcesses,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// DaemonUp reports whether the supervision daemon is currently running.
// The match is on exact process name. No side effects.
func (p *Probe) DaemonUp() bool {
	procs, err := p.ListProcesses()
	if err != nil {
		return false
	}
	for _, pr := range procs {
		if pr.Name == p.DaemonName {
			return true
		}
	}
	return false
}

// ServiceUp reports whether the named service is up: the daemon is
// running, the live directory entry exists, and its supervisor reports
// a running process.
func (p *Probe) ServiceUp(name string) bool {
	if !p.DaemonUp() {
		return false
	}

	dir := filepath.Join(p.LiveDir, name)
	if _, err := os.Stat(dir); err != nil {
		return false
	}

	st, err := readStatusFile(dir)
	if err != nil {
		return false
	}
	return st.State == StateRunning
}

// LogUp reports whether the named service's log sub-service is up,
// with the same ground rules as ServiceUp.
func (p *Probe) LogUp(name string) bool {
	if !p.DaemonUp() {
		return false
	}

	dir := filepath.Join(p.LiveDir, name, LogDir)
	st, err := readStatusFile(dir)
	if err != nil {
		return false
	}
	return st.State == StateRunning
}

// ProcessSnapshot records the pids belonging to the named service's
// supervision tree: each supervise process keeps its own pid, each
// multilog process contributes its parent pid (the logger sits inside a
// pipeline controlled by a supervise parent). The snapshot must be taken
// before the service directory is removed, since that entry is the key
// the daemon uses to associate processes with services.
func (p *Probe) ProcessSnapshot(name string) []int {
	procs, err := p.ListProcesses()
	if err != nil {
		return nil
	}

	var pids []int
	for _, pr := range procs {
		if !cmdlineNames(pr.Cmdline, name) {
			continue
		}
		switch pr.Name {
		case superviseProcName:
			pids = append(pids, pr.PID)
		case loggerProcName:
			pids = append(pids, pr.PPID)
		}
	}
	return pids
}

// cmdlineNames reports whether any argument names the service as a whole
// path component. A bare substring match would also hit services whose
// name contains this one.
func cmdlineNames(cmdline []string, name string) bool {
	for _, arg := range cmdline {
		if arg == name {
			return true
		}
		for _, seg := range strings.Split(arg, "/") {
			if seg == name {
				return true
			}
		}
	}
	return false
}
