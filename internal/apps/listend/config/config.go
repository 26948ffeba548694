package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// ensureFile ensures that the parent folder exists and the file exists.
// If the file already exists, it does nothing.
func ensureFile(path string) error {
	// Ensure parent directory
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Create file if not exists
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create/open file: %w", err)
	}
	defer f.Close()

	return nil
}

func ConfigBasePath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		// TODO: are we sure??? what about non unix systems? do we really want to support them?
		homedir = "/usr/local/config/listend"
	}

	p := filepath.Join(homedir, ".config", "listend")
	return p
}

func logsPath() string {
	p := filepath.Join(ConfigBasePath(), "logs")
	return p
}

func StateDBFile() string {
	return filepath.Join(ConfigBasePath(), "state.db")
}

func RunLogPath(runID string) string {
	p := filepath.Join(logsPath(), "run-"+runID+".log")
	ensureFile(p)
	return p
}

func RunLogPathOpen(runID string) (*os.File, error) {
	return os.OpenFile(RunLogPath(runID), os.O_CREATE|os.O_RDWR, 0o644)
}
