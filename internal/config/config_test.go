package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datez/internal/report"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "datez.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@every 10s", cfg.Refresh)
	assert.Equal(t, filepath.Join(dir, "nested", "data.json"), cfg.Data)
	assert.Equal(t, report.ModeBoth, cfg.ReportMode())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_ParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datez.yaml")
	content := `
data: events.yaml
refresh: "not a schedule"
timezone: Asia/Seoul
report: DAYS
log_level: debug
upcoming: -2
ics:
  - url: https://example.com/holidays.ics
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "events.yaml"), cfg.Data)
	assert.Equal(t, "@every 10s", cfg.Refresh)
	assert.Equal(t, report.ModeDays, cfg.ReportMode())
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 0, cfg.Upcoming)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "https://example.com/holidays.ics", cfg.ICS[0].ID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datez.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refresh: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datez.yaml")
	cfg := DefaultConfig()
	cfg.Data = "/srv/datez/data.json"
	cfg.Refresh = "*/5 * * * *"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/datez/data.json", loaded.Data)
	assert.Equal(t, "*/5 * * * *", loaded.Refresh)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "u", loaded.BasicAuth.Username)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())

	cfg.Timezone = "Nowhere/Special"
	assert.Equal(t, time.Local, cfg.Location())
}
