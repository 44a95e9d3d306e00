package svcdeploy

import "time"

// Service directory and file constants
const (
	// SuperviseDir is the subdirectory the supervision daemon creates
	// inside each service directory it has adopted
	SuperviseDir = "supervise"

	// ControlFile is the control socket/FIFO file name
	ControlFile = "control"

	// StatusFile is the binary status file name
	StatusFile = "status"

	// StatusFileSize is the exact size of the binary status record in bytes
	// Reference: daemontools taia_pack (12) + pid (4) + paused + want + 2 flags
	StatusFileSize = 20

	// RunScript is the service's main run script file name
	RunScript = "run"

	// LogDir is the subdirectory holding the log sub-service
	LogDir = "log"

	// DownFile marks a service that must not be auto-started
	DownFile = "down"
)

// Default directory layout. InstallDir and WorkDir vary by topology;
// LiveDir is the tree the supervision daemon actually scans.
const (
	// DefaultLiveDir is the live service tree path
	DefaultLiveDir = "/service"

	// DefaultInstallDir is the authoritative service directory on
	// releases where it is separate from the live tree
	DefaultInstallDir = "/opt/svc/service"

	// DefaultWorkDir is the overlay staging directory used while a
	// filesystem overlay backs the live tree
	DefaultWorkDir = "/run/overlays/service"

	// DefaultLedgerPath records which services this tool installed
	DefaultLedgerPath = "/data/installed-services"

	// DefaultDaemonName is the exact process name of the supervision daemon
	DefaultDaemonName = "svscan"
)

// Version thresholds selecting the directory topology
const (
	// DefaultOverlayMinVersion is the first release backing the live
	// tree with a filesystem overlay
	DefaultOverlayMinVersion = "v2.80"

	// DefaultTmpfsMinVersion is the first release populating the live
	// tree from tmpfs at boot
	DefaultTmpfsMinVersion = "v2.90"
)

// Control and polling defaults
const (
	// DefaultDialTimeout is the default timeout for control socket connections
	DefaultDialTimeout = 2 * time.Second

	// DefaultWriteTimeout is the default timeout for control write operations
	DefaultWriteTimeout = 1 * time.Second

	// DefaultBackoffMin is the minimum backoff duration for control retries
	DefaultBackoffMin = 10 * time.Millisecond

	// DefaultBackoffMax is the maximum backoff duration for control retries
	DefaultBackoffMax = 1 * time.Second

	// DefaultMaxAttempts is the default maximum number of control retry attempts
	DefaultMaxAttempts = 10

	// DefaultPollInterval is the pause between adoption poll iterations
	DefaultPollInterval = 1 * time.Second

	// DefaultPollAttempts is the number of adoption poll iterations before
	// falling back to an explicit start command
	DefaultPollAttempts = 10
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644

	// ExecMode is the default mode for executable scripts
	ExecMode = 0o755
)

// TAI64N constants for timestamp decoding
const (
	// TAI64Base is the TAI64 epoch offset from Unix epoch, 2^62 + 10
	// seconds (TAI is 10 seconds ahead of UTC at the Unix epoch)
	TAI64Base = uint64(1<<62) + 10
)
