package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.codecorpus/logs/).
// Falls back to the temp directory if home is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codecorpus", "logs")
	}
	return filepath.Join(home, ".codecorpus", "logs")
}

// DefaultLogPath returns the default run log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "codecorpus.log")
}

// EnsureLogDir creates the directory holding path.
func EnsureLogDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}
