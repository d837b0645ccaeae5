package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSettingsHolderDefaultsWithoutFile(t *testing.T) {
	holder, err := newSettingsHolder(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, DefaultSettings(), got)
	assert.Equal(t, int64(32<<20), got.Ingest.MaxUploadBytes())
}

func TestSettingsHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("dashboard:\n  topUsersLimit: 25\n  defaultRangeDays: 7\ningest:\n  maxUploadMB: 4\n  invalidRowSample: 10\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.yml"), content, 0o600))

	holder, err := newSettingsHolder(zap.NewNop(), dir)
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 25, got.Dashboard.TopUsersLimit)
	assert.Equal(t, 7, got.Dashboard.DefaultRangeDays)
	assert.Equal(t, 4, got.Ingest.MaxUploadMB)
	assert.Equal(t, 10, got.Ingest.InvalidRowSample)
}

func TestSettingsHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("dashboard:\n  topUsersLimit: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.yml"), content, 0o600))

	_, err := newSettingsHolder(zap.NewNop(), dir)
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("CURSOR_API_URL", "")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "secret")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, DefaultCursorAPIURL, cfg.Cursor.APIURL)
	assert.Equal(t, DefaultCursorStartDateEpoch, cfg.Cursor.StartDateEpoch)
	assert.True(t, cfg.Admin.Enabled())
	assert.False(t, cfg.Archive.Enabled())
}
