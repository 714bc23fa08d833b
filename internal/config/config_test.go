package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

paths:
  themes_config: "/srv/prisme/themes_config.json"
  output_dir: "/srv/prisme/output"
  csv_sources_dir: "/srv/prisme/csv_sources"
  frontend_dist: "/srv/prisme/dist"
  watch_themes: true

engine:
  interpreter: "py"
  work_dir: "/srv/prisme/Backend"
  timeout_seconds: 600
  verify_output: false
  single_flight: true

cache:
  redis_url: "redis://localhost:6379/0"
  years_ttl_seconds: 60

admin:
  users:
    - id: "1"
      name: "Marie Dupont"
      email: "marie.dupont@orsg-ctps.fr"
      role: "Administrateur"
      status: "active"
      last_login: "22/01/2026 09:30"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Test server config
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Test paths
	assert.Equal(t, "/srv/prisme/themes_config.json", cfg.Paths.ThemesConfig)
	assert.Equal(t, "/srv/prisme/output", cfg.Paths.OutputDir)
	assert.Equal(t, "/srv/prisme/csv_sources", cfg.Paths.CSVSourcesDir)
	assert.Equal(t, "/srv/prisme/dist", cfg.Paths.FrontendDist)
	assert.True(t, cfg.Paths.WatchThemes)

	// Test engine config
	assert.Equal(t, "py", cfg.Engine.Interpreter)
	assert.Equal(t, 10*time.Minute, cfg.Engine.Timeout())
	assert.False(t, cfg.Engine.ShouldVerifyOutput())
	assert.True(t, cfg.Engine.SingleFlight)

	// Test cache config
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, time.Minute, cfg.Cache.YearsTTL())

	// Test admin directory
	require.Len(t, cfg.Admin.Users, 1)
	assert.Equal(t, "Marie Dupont", cfg.Admin.Users[0].Name)
	assert.Equal(t, "22/01/2026 09:30", cfg.Admin.Users[0].LastLogin)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("server:\n  version: \"4.1.0\"\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "4.1.0", cfg.Server.Version)
	assert.Equal(t, "themes_config.json", cfg.Paths.ThemesConfig)
	assert.Equal(t, "output", cfg.Paths.OutputDir)
	assert.Equal(t, "python3", cfg.Engine.Interpreter)
	assert.Equal(t, "prisme_engine", cfg.Engine.Module)
	assert.Equal(t, "generate_prisme_excel", cfg.Engine.Function)
	assert.Equal(t, time.Duration(0), cfg.Engine.Timeout())
	assert.True(t, cfg.Engine.ShouldVerifyOutput())
	assert.Equal(t, 5*time.Minute, cfg.Cache.YearsTTL())
	assert.False(t, cfg.Publish.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
paths:
  output_dir: "from-file"
engine:
  interpreter: "python3"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("PRISME_OUTPUT_DIR", "from-env")
	t.Setenv("PRISME_PYTHON", "py")
	t.Setenv("PRISME_PORT", "8181")
	t.Setenv("PRISME_S3_BUCKET", "prisme-reports")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "from-env", cfg.Paths.OutputDir)
	assert.Equal(t, "py", cfg.Engine.Interpreter)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.True(t, cfg.Publish.Enabled())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, ".py", cfg.Engine.ScriptExt)
	assert.Equal(t, 200, cfg.History.MemoryRecords)
}
