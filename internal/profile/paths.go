package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wppbot, or $WPPBOT_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("WPPBOT_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppbot")
}

// Dir returns the per-user profile directory.
func Dir(userID string) string {
	return filepath.Join(BaseDir(), "profiles", userID)
}

// StorePath returns the document store database path.
func StorePath(userID string) string {
	return filepath.Join(Dir(userID), "documents.db")
}

// MediaPath returns the media blob store path.
func MediaPath(userID string) string {
	return filepath.Join(Dir(userID), "media.db")
}

// LogDir returns the log directory for a profile.
func LogDir(userID string) string {
	return filepath.Join(Dir(userID), "logs")
}

// LogPath returns the dashboard log file path.
func LogPath(userID string) string {
	return filepath.Join(LogDir(userID), "wppbot.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(userID string) error {
	for _, d := range []string{Dir(userID), LogDir(userID)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
