// Package svcdeploy installs, updates, and removes daemontools-style
// supervised services on embedded Linux devices whose service-directory
// layout varies across OS releases.
//
// Depending on the installed OS version the live service tree scanned by
// the supervision daemon is either writable in place, backed by a
// filesystem overlay, or a tmpfs populated only at boot. ResolveLayout
// picks the layout once:
//
//	layout, err := svcdeploy.DefaultLayoutConfig().ResolveLayout("v2.92")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A Deployer reconciles a desired service definition (a directory with a
// run script, an optional log/run script, and an optional down marker)
// against the on-disk and runtime state, copying only what changed and
// restarting only what it copied:
//
//	dep := svcdeploy.NewDeployer(layout)
//	res, err := dep.Install(ctx, svcdeploy.InstallRequest{
//	    Name:      "gps-logger",
//	    SourceDir: "/data/pkg/gps/service",
//	})
//
// A Remover tears a service down across every directory the layout
// involves, stops its supervision, and reaps lingering supervise and
// multilog processes:
//
//	rem := svcdeploy.NewRemover(layout)
//	err := rem.Remove(ctx, "gps-logger")
//
// # Design Philosophy
//
// This library prioritizes:
//
//   - Zero external process spawning (no exec of svc/svstat/ps)
//   - Direct communication with supervise control/status endpoints
//   - Atomic file writes: the daemon never observes a torn run script
//   - Explicit, typed results; no global mutable state
//
// It does not supervise processes itself; it observes and signals an
// already-running supervision daemon, and it relies on the caller to
// serialize invocations per machine.
package svcdeploy
