package svcdeploy

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// makeStatusData builds a 20-byte supervise status record
func makeStatusData(pid int, want byte, paused, running byte) []byte {
	data := make([]byte, StatusFileSize)

	now := time.Now()
	binary.BigEndian.PutUint64(data[offsetTAI64Sec:offsetTAI64Nano], uint64(now.Unix())+TAI64Base)
	binary.BigEndian.PutUint32(data[offsetTAI64Nano:offsetPID], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(data[offsetPID:offsetPaused], uint32(pid))

	data[offsetPaused] = paused
	data[offsetWant] = want
	data[offsetTerm] = 0
	data[offsetRun] = running

	return data
}

// writeStatus creates supervise/status beneath a service directory
func writeStatus(t *testing.T, serviceDir string, data []byte) {
	t.Helper()
	superviseDir := filepath.Join(serviceDir, SuperviseDir)
	if err := os.MkdirAll(superviseDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(superviseDir, StatusFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// markRunning writes a running status record beneath a service directory
func markRunning(t *testing.T, serviceDir string, pid int) {
	t.Helper()
	writeStatus(t, serviceDir, makeStatusData(pid, 'u', 0, 1))
}

// listenControl creates supervise/control as a unix socket beneath a
// service directory and returns a channel of received control bytes
func listenControl(t *testing.T, serviceDir string) <-chan byte {
	t.Helper()
	superviseDir := filepath.Join(serviceDir, SuperviseDir)
	if err := os.MkdirAll(superviseDir, 0o755); err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("unix", filepath.Join(superviseDir, ControlFile))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	received := make(chan byte, 8)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				var buf [1]byte
				for {
					if _, err := c.Read(buf[:]); err != nil {
						return
					}
					received <- buf[0]
				}
			}(conn)
		}
	}()
	return received
}

// expectByte asserts that a control byte arrives within a second
func expectByte(t *testing.T, ch <-chan byte, want byte) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("control byte = %c, want %c", got, want)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for control byte %c", want)
	}
}

// expectNoByte asserts that no control byte arrives within the grace period
func expectNoByte(t *testing.T, ch <-chan byte) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected control byte %c", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeLister builds a ProcessLister over a fixed process table
func fakeLister(procs ...ProcessInfo) ProcessLister {
	return func() ([]ProcessInfo, error) {
		return procs, nil
	}
}

// daemonProc is a process-table entry for a running supervision daemon
func daemonProc() ProcessInfo {
	return ProcessInfo{PID: 99, PPID: 1, Name: DefaultDaemonName, Cmdline: []string{DefaultDaemonName, "/service"}}
}

// writeServiceSource builds a service definition directory with the
// given run script, optional log/run script, and optional down marker
func writeServiceSource(t *testing.T, dir, run, logRun string, down bool) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, RunScript), []byte(run), 0o755); err != nil {
		t.Fatal(err)
	}
	if logRun != "" {
		if err := os.MkdirAll(filepath.Join(dir, LogDir), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, LogDir, RunScript), []byte(logRun), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if down {
		if err := os.WriteFile(filepath.Join(dir, DownFile), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
