// Package security confines the pinlock state file to its data directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const DirPermSecure = 0700

var (
	ErrPathEscapes         = errors.New("path escapes data directory")
	ErrAbsolutePath        = errors.New("absolute paths are not allowed")
	ErrEmptyPath           = errors.New("empty path not allowed")
	ErrNotRegularFile      = errors.New("state file is not a regular file")
	ErrInsecurePermissions = errors.New("data directory is accessible by other users")
)

// StateDir is the data directory holding the state file. File lookups go
// through os.Root so symlinks cannot redirect them outside the directory.
type StateDir struct {
	root *os.Root
	path string
}

// Open creates the data directory if needed (owner-only) and opens it as a root.
func Open(dir string) (*StateDir, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, DirPermSecure); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	return &StateDir{root: root, path: absPath}, nil
}

// Close releases the directory handle
func (d *StateDir) Close() error {
	if d.root != nil {
		return d.root.Close()
	}
	return nil
}

// Path returns the absolute data directory path
func (d *StateDir) Path() string {
	return d.path
}

// Normalize validates a file name relative to the data directory. It rejects:
// - Empty paths
// - Absolute paths
// - Paths that escape the directory (using ..)
// - Windows reserved names (CON, NUL, etc.)
func (d *StateDir) Normalize(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(name) {
		if filepath.IsAbs(name) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	cleanPath := filepath.Clean(name)
	relPath, err := filepath.Rel(d.path, filepath.Join(d.path, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return relPath, nil
}

// Resolve validates name and returns the absolute path of the state file.
// An existing entry must be a regular file reachable inside the directory.
func (d *StateDir) Resolve(name string) (string, error) {
	rel, err := d.Normalize(name)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(rel); dir != "." {
		if err := os.MkdirAll(filepath.Join(d.path, dir), DirPermSecure); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	info, err := d.root.Lstat(rel)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return "", fmt.Errorf("%w: %s", ErrNotRegularFile, rel)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", fmt.Errorf("failed to stat %s: %w", rel, err)
	}

	return filepath.Join(d.path, rel), nil
}

// Stat stats a file inside the directory
func (d *StateDir) Stat(name string) (os.FileInfo, error) {
	rel, err := d.Normalize(name)
	if err != nil {
		return nil, err
	}
	return d.root.Stat(rel)
}

// CheckPermissions reports ErrInsecurePermissions when group or other
// users can access the directory. Not enforced on Windows.
func (d *StateDir) CheckPermissions() error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("failed to stat data directory: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrInsecurePermissions, d.path, info.Mode().Perm())
	}
	return nil
}
