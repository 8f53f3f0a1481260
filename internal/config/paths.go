package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the per-user application paths. This is the single source
// of truth for every file the application persists.
type Paths struct {
	UserDir     string // ~/.tktapp
	LicenseFile string // ~/.tktapp/license.json
	ReportsDir  string // ~/.tktapp/reports
	LogsDir     string // ~/.tktapp/logs
}

// GetPaths resolves the per-user application directory. The directory is
// not created here; call EnsureDirectories before writing.
func GetPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user home directory: %w", err)
	}
	return PathsUnder(home), nil
}

// PathsUnder builds the path set rooted at the given base directory.
// Tests use this to point the application at a temporary directory.
func PathsUnder(base string) *Paths {
	userDir := filepath.Join(base, UserDirName)
	return &Paths{
		UserDir:     userDir,
		LicenseFile: filepath.Join(userDir, LicenseFileName),
		ReportsDir:  filepath.Join(userDir, DefaultReportsDir),
		LogsDir:     filepath.Join(userDir, "logs"),
	}
}

// EnsureDirectories creates the user directory tree if needed.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.UserDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether the given path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
