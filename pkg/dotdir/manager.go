// Package dotdir manages the .spool/ and ~/.spool directories.
//
// The spool directory holds the user's configuration file, credentials, and
// build logs. Commands discover it relative to the working directory first so
// a repository can carry its own settings, falling back to the home directory.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the spool directory.
	dirName = ".spool"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .spool/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if it doesn't exist
//  2. Local ./.spool/ dir
//  3. Home ~/.spool/ dir
//
// When no override is given and neither directory exists, Target returns an
// empty string so callers can fall back to defaults without littering the
// filesystem.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating spool directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if dir, ok := m.localDir(); ok {
		return filepath.Abs(dir)
	}

	if dir, ok := m.homeDir(); ok {
		return filepath.Abs(dir)
	}

	return "", nil
}

// Ensure resolves the .spool/ directory like Target but always returns a
// usable path, creating ~/.spool/ when nothing exists yet.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating spool directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// localDir checks whether a .spool/ directory exists in the current working
// directory.
func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(cwd, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}

// homeDir checks whether a .spool/ directory exists in the user's home
// directory.
func (m *Manager) homeDir() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(home, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
