package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DefaultLicenseServerURL, cfg.License.ServerURL)
	assert.Equal(t, DefaultAppVersion, cfg.License.AppVersion)
	assert.Equal(t, DefaultOfflineGraceDays, cfg.License.OfflineGraceDays)
	assert.Equal(t, 12*time.Second, cfg.License.CheckTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TKT_LICENSE_SERVER_URL", "http://localhost:9999")
	t.Setenv("TKT_LICENSE_APP_VERSION", "2.4.1")
	t.Setenv("TKT_LICENSE_OFFLINE_GRACE_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.License.ServerURL)
	assert.Equal(t, "2.4.1", cfg.License.AppVersion)
	assert.Equal(t, 7, cfg.License.OfflineGraceDays)
	assert.Equal(t, 7*24*time.Hour, cfg.License.OfflineGracePeriod())
}

func TestOfflineGracePeriodFloor(t *testing.T) {
	tests := []struct {
		name string
		days int
		want time.Duration
	}{
		{"default", 1, 24 * time.Hour},
		{"week", 7, 7 * 24 * time.Hour},
		{"zero falls back to default", 0, 24 * time.Hour},
		{"negative falls back to default", -3, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := LicenseConfig{OfflineGraceDays: tt.days}
			assert.Equal(t, tt.want, lc.OfflineGracePeriod())
		})
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Server.Port = -1
	assert.Error(t, cfg.validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.validate())
}

func TestPathsUnder(t *testing.T) {
	base := t.TempDir()
	paths := PathsUnder(base)

	assert.Equal(t, filepath.Join(base, UserDirName), paths.UserDir)
	assert.Equal(t, filepath.Join(base, UserDirName, LicenseFileName), paths.LicenseFile)

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.UserDir)
	assert.DirExists(t, paths.ReportsDir)

	// EnsureDirectories is idempotent.
	require.NoError(t, paths.EnsureDirectories())
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, FileExists(filepath.Join(dir, "missing.json")))
	assert.False(t, FileExists(dir)) // directories do not count

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n"), 0o644))
	assert.True(t, FileExists(path))
}
