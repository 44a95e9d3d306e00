package svcdeploy

import (
	"fmt"
	"path/filepath"

	"golang.org/x/mod/semver"
)

// Topology represents how the live service tree is backed on this OS release
type Topology int

const (
	// TopologyUnknown represents an unresolved topology
	TopologyUnknown Topology = iota
	// TopologyWritable represents a live tree that is writable in place;
	// the authoritative directory and the live tree are the same directory
	TopologyWritable
	// TopologyOverlay represents a live tree backed by a filesystem
	// overlay with a separate staging directory
	TopologyOverlay
	// TopologyTmpfs represents a live tree on tmpfs, populated from the
	// authoritative directory only at boot
	TopologyTmpfs
)

// Topology string constants
const (
	topologyUnknownStr  = "unknown"
	topologyWritableStr = "writable"
	topologyOverlayStr  = "overlay"
	topologyTmpfsStr    = "tmpfs"
)

// String returns the string representation of a Topology
func (t Topology) String() string {
	switch t {
	case TopologyWritable:
		return topologyWritableStr
	case TopologyOverlay:
		return topologyOverlayStr
	case TopologyTmpfs:
		return topologyTmpfsStr
	case TopologyUnknown:
		fallthrough
	default:
		return topologyUnknownStr
	}
}

// Layout is the resolved directory topology. It is derived once per run
// from the installed OS version and passed by value into every
// subsequent operation.
type Layout struct {
	// Topology selects which directories participate in each operation
	Topology Topology
	// InstallDir is the authoritative directory that survives a reboot
	InstallDir string
	// LiveDir is the tree the supervision daemon scans at runtime
	LiveDir string
	// WorkDir is the overlay staging directory; empty unless Topology
	// is TopologyOverlay
	WorkDir string
}

// InstallPath returns the authoritative directory for a named service
func (l Layout) InstallPath(name string) string {
	return filepath.Join(l.InstallDir, name)
}

// LivePath returns the live-tree directory for a named service
func (l Layout) LivePath(name string) string {
	return filepath.Join(l.LiveDir, name)
}

// MirrorPath returns the secondary copy that must be kept consistent
// with the authoritative directory: the live copy under tmpfs, the
// staging copy under an overlay, and nothing when the live tree is
// writable in place.
func (l Layout) MirrorPath(name string) string {
	switch l.Topology {
	case TopologyTmpfs:
		return filepath.Join(l.LiveDir, name)
	case TopologyOverlay:
		return filepath.Join(l.WorkDir, name)
	default:
		return ""
	}
}

// LayoutConfig controls how ResolveLayout maps an OS version to a Layout
type LayoutConfig struct {
	// LiveDir is the live service tree path
	LiveDir string
	// InstallDir is the authoritative directory used on releases where
	// it is separate from the live tree
	InstallDir string
	// WorkDir is the overlay staging directory
	WorkDir string
	// OverlayMinVersion is the first release with an overlay-backed live tree
	OverlayMinVersion string
	// TmpfsMinVersion is the first release with a tmpfs-backed live tree
	TmpfsMinVersion string
	// Compare orders two version strings, returning -1, 0, or +1.
	// When nil, versions are ordered by semver and validated first.
	Compare func(a, b string) int
}

// DefaultLayoutConfig returns a LayoutConfig with the stock directory
// paths and version thresholds.
func DefaultLayoutConfig() *LayoutConfig {
	return &LayoutConfig{
		LiveDir:           DefaultLiveDir,
		InstallDir:        DefaultInstallDir,
		WorkDir:           DefaultWorkDir,
		OverlayMinVersion: DefaultOverlayMinVersion,
		TmpfsMinVersion:   DefaultTmpfsMinVersion,
	}
}

// ResolveLayout maps the installed OS version to a Layout. Every later
// operation depends on this choice, so an unparsable version fails fast
// with a ConfigError instead of guessing a topology.
func (c *LayoutConfig) ResolveLayout(version string) (Layout, error) {
	cmp := c.Compare
	if cmp == nil {
		if !semver.IsValid(version) {
			return Layout{}, &ConfigError{
				Reason: fmt.Sprintf("unparsable OS version %q", version),
			}
		}
		cmp = semver.Compare
	}

	switch {
	case cmp(version, c.TmpfsMinVersion) >= 0:
		return Layout{
			Topology:   TopologyTmpfs,
			InstallDir: c.InstallDir,
			LiveDir:    c.LiveDir,
		}, nil
	case cmp(version, c.OverlayMinVersion) >= 0:
		return Layout{
			Topology:   TopologyOverlay,
			InstallDir: c.InstallDir,
			LiveDir:    c.LiveDir,
			WorkDir:    c.WorkDir,
		}, nil
	default:
		// The live tree is writable in place; it is also authoritative.
		return Layout{
			Topology:   TopologyWritable,
			InstallDir: c.LiveDir,
			LiveDir:    c.LiveDir,
		}, nil
	}
}
