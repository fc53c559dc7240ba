// Package paths resolves the on-disk locations the CLI reads and writes.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// HomeEnvVar overrides the state directory.
	HomeEnvVar = "VOYAGEPAL_HOME"

	appDirName      = "voyagepal"
	logsDirName     = "logs"
	stateDirName    = "state"
	SettingsFile    = "settings.json"
	LocalSettings   = "settings.local.json"
	DotEnvFile      = ".env"
	LogFileName     = "voyagepal.log"
	SQLiteStateFile = "state.db"
)

// Home returns the CLI home directory. Resolution order: the explicit
// override (from --home), $VOYAGEPAL_HOME, then <user config dir>/voyagepal.
func Home(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override) //nolint:wrapcheck // Abs errors are self-describing
	}
	if env := os.Getenv(HomeEnvVar); env != "" {
		return filepath.Abs(env) //nolint:wrapcheck // Abs errors are self-describing
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	if cfg == "" {
		return "", errors.New("user config directory is empty")
	}
	return filepath.Join(cfg, appDirName), nil
}

// LogsDir returns the directory log files are written to.
func LogsDir(home string) string {
	return filepath.Join(home, logsDirName)
}

// StateDir returns the directory the file state backend writes keys into.
func StateDir(home string) string {
	return filepath.Join(home, stateDirName)
}

// EnsureDir creates dir (and parents) with owner-only permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
