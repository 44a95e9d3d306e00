package svcdeploy

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// Ledger is the newline-delimited record of services this tool has
// installed. It exists solely so a later bulk-removal pass can find
// every service the tool put on the machine, including half-installed
// ones: installers append to it before touching the filesystem.
//
// The file is read-modify-written in full on removal and is not safe
// for concurrent writers; callers serialize access per machine.
type Ledger struct {
	// Path is the ledger file location
	Path string
}

// NewLedger creates a Ledger at the given path
func NewLedger(path string) *Ledger {
	return &Ledger{Path: path}
}

// Names returns the recorded service names in append order.
// A missing ledger file is an empty ledger.
func (l *Ledger) Names() ([]string, error) {
	file, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	defer func() { _ = file.Close() }()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return names, nil
}

// Contains reports whether the ledger records the exact name
func (l *Ledger) Contains(name string) (bool, error) {
	names, err := l.Names()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Append records a service name. Appending a name already present is a
// no-op, keeping the ledger a set keyed on the name.
func (l *Ledger) Append(name string) error {
	if name == "" {
		return nil
	}

	present, err := l.Contains(name)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	file, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("appending to ledger: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.WriteString(name + "\n"); err != nil {
		return fmt.Errorf("appending to ledger: %w", err)
	}
	return nil
}

// Remove rewrites the ledger without the named service. The filter
// matches the name as a whole line, never as a substring, so removing
// "gps" leaves "gps-logger" untouched. Removing a name that is not
// recorded leaves the ledger unchanged.
func (l *Ledger) Remove(name string) error {
	names, err := l.Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	var buf bytes.Buffer
	kept := 0
	for _, n := range names {
		if n == name {
			continue
		}
		buf.WriteString(n)
		buf.WriteByte('\n')
		kept++
	}
	if kept == len(names) {
		return nil
	}

	if err := renameio.WriteFile(l.Path, buf.Bytes(), FileMode); err != nil {
		return fmt.Errorf("rewriting ledger: %w", err)
	}
	return nil
}
