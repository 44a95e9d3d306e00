package svcdeploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewSupervisor(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing supervise dir", func(t *testing.T) {
		_, err := NewSupervisor(tmpDir)
		if err == nil {
			t.Fatal("expected error for missing supervise dir")
		}
	})

	t.Run("with supervise dir", func(t *testing.T) {
		serviceDir := filepath.Join(tmpDir, "gps")
		if err := os.MkdirAll(filepath.Join(serviceDir, SuperviseDir), 0o755); err != nil {
			t.Fatal(err)
		}

		sup, err := NewSupervisor(serviceDir)
		if err != nil {
			t.Fatal(err)
		}
		if sup.ServiceDir != serviceDir {
			t.Errorf("ServiceDir = %v, want %v", sup.ServiceDir, serviceDir)
		}
	})
}

func TestSupervisorOptions(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, SuperviseDir), 0o755); err != nil {
		t.Fatal(err)
	}

	sup, err := NewSupervisor(tmpDir,
		WithDialTimeout(3*time.Second),
		WithWriteTimeout(2*time.Second),
		WithBackoff(20*time.Millisecond, 2*time.Second),
		WithMaxAttempts(5),
	)
	if err != nil {
		t.Fatal(err)
	}

	if sup.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %v, want %v", sup.DialTimeout, 3*time.Second)
	}
	if sup.WriteTimeout != 2*time.Second {
		t.Errorf("WriteTimeout = %v, want %v", sup.WriteTimeout, 2*time.Second)
	}
	if sup.BackoffMin != 20*time.Millisecond {
		t.Errorf("BackoffMin = %v, want %v", sup.BackoffMin, 20*time.Millisecond)
	}
	if sup.BackoffMax != 2*time.Second {
		t.Errorf("BackoffMax = %v, want %v", sup.BackoffMax, 2*time.Second)
	}
	if sup.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %v, want 5", sup.MaxAttempts)
	}
}

func TestSupervisorSend(t *testing.T) {
	serviceDir := filepath.Join(t.TempDir(), "gps")
	received := listenControl(t, serviceDir)

	sup, err := NewSupervisor(serviceDir, WithMaxAttempts(1))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := sup.Down(ctx); err != nil {
		t.Fatal(err)
	}
	expectByte(t, received, 'd')

	if err := sup.Term(ctx); err != nil {
		t.Fatal(err)
	}
	expectByte(t, received, 't')

	if err := sup.Up(ctx); err != nil {
		t.Fatal(err)
	}
	expectByte(t, received, 'u')
}

func TestSupervisorStatus(t *testing.T) {
	serviceDir := filepath.Join(t.TempDir(), "gps")
	markRunning(t, serviceDir, 1234)

	sup, err := NewSupervisor(serviceDir)
	if err != nil {
		t.Fatal(err)
	}

	status, err := sup.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.PID != 1234 {
		t.Errorf("PID = %v, want 1234", status.PID)
	}
	if status.State != StateRunning {
		t.Errorf("State = %v, want StateRunning", status.State)
	}
}
