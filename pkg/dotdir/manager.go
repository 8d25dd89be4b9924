// Package dotdir resolves the .botstream/ directory that holds config.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the botstream directory.
const DirName = ".botstream"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .botstream/ directory to use,
// creating it when missing. Order of precedence:
//  1. Provided override
//  2. The nearest .botstream/ in the working directory or one of its parents
//  3. ~/.botstream/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		local, err := m.findLocal()
		if err != nil {
			return "", err
		}
		dir = local
	}

	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating botstream directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// findLocal walks up from the working directory looking for a .botstream/
// directory. It returns "" when none is found.
func (m *Manager) findLocal() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	for dir := cwd; ; {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
