package svcdeploy

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// copyServiceDir recursively copies a service definition directory.
// Regular files are written atomically so the supervision daemon never
// observes a torn run script; file modes are preserved. Symlinks inside
// a definition are resolved to their content.
func copyServiceDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, DirMode); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			return nil
		}

		return copyFile(path, target)
	})
}

// copyFile copies a single file atomically, preserving its mode.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	mode := fs.FileMode(FileMode)
	if info, err := os.Stat(src); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(dst), DirMode); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if err := renameio.WriteFile(dst, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// filesEqual reports whether two files have identical bytes. A file
// that cannot be read compares unequal.
func filesEqual(a, b string) bool {
	da, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	return bytes.Equal(da, db)
}

// syncFile copies src over dst when their bytes differ, reporting
// whether a copy happened.
func syncFile(src, dst string) (bool, error) {
	if filesEqual(src, dst) {
		return false, nil
	}
	if err := copyFile(src, dst); err != nil {
		return false, err
	}
	return true, nil
}

// exists reports whether the path exists, following symlinks
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isSymlink reports whether the path itself is a symbolic link
func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}
