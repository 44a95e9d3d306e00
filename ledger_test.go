package svcdeploy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLedgerMissingFile(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "ledger"))

	names, err := l.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("Names = %v, want empty", names)
	}

	// Removing from a missing ledger is a no-op, not an error
	if err := l.Remove("gps"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(l.Path); !os.IsNotExist(err) {
		t.Error("no-op remove should not create the ledger file")
	}
}

func TestLedgerAppend(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "ledger"))

	for _, name := range []string{"gps", "modem", "gps"} {
		if err := l.Append(name); err != nil {
			t.Fatal(err)
		}
	}

	names, err := l.Names()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"gps", "modem"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
}

func TestLedgerRemoveExactMatch(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "ledger"))

	for _, name := range []string{"gps", "gps-logger", "modem"} {
		if err := l.Append(name); err != nil {
			t.Fatal(err)
		}
	}

	// "gps" is a substring of "gps-logger"; only the exact line may go
	if err := l.Remove("gps"); err != nil {
		t.Fatal(err)
	}

	names, err := l.Names()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"gps-logger", "modem"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
}

func TestLedgerRemoveUnknown(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "ledger"))
	if err := l.Append("gps"); err != nil {
		t.Fatal(err)
	}

	before, err := os.ReadFile(l.Path)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Remove("modem"); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(l.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("ledger changed: %q -> %q", before, after)
	}
}

func TestLedgerContains(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "ledger"))
	if err := l.Append("gps"); err != nil {
		t.Fatal(err)
	}

	if ok, err := l.Contains("gps"); err != nil || !ok {
		t.Errorf("Contains(gps) = %v, %v, want true", ok, err)
	}
	if ok, err := l.Contains("gp"); err != nil || ok {
		t.Errorf("Contains(gp) = %v, %v, want false", ok, err)
	}
}
