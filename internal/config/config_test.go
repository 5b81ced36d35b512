package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/graphbatch/internal/config"
)

// isolate points the graphbatch home at a temp dir and chdirs away from any .env.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvConfig, "")
	t.Chdir(t.TempDir())
	return home
}

func TestDefaults(t *testing.T) {
	home := isolate(t)

	cfg := config.Defaults()
	assert.Equal(t, runtime.NumCPU(), cfg.Dispatch.Workers)
	assert.Equal(t, "before", cfg.Source.Columns.Content)
	assert.Equal(t, "dataset", cfg.Source.Columns.Group)
	assert.Equal(t, "id", cfg.Source.Columns.ID)
	assert.Equal(t, filepath.Join(home, "cache", "minimal_datasets", "minimal_bigvul_False.pq"), cfg.Source.Path)
	assert.Equal(t, "joern", cfg.Backend.Command)
	assert.True(t, cfg.Backend.SkipExisting)
	assert.Equal(t, config.ArtifactBackendFile, cfg.Artifacts.Backend)
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.ConfigPath())
	require.NoError(t, cfg.Validate())
}

func TestDefaultLogFile(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, "logs", "graphbatch.log"), config.DefaultLogFile())
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dispatch:
  workers: 3
  task_timeout: 90s
source:
  path: /data/funcs.csv
backend:
  command: /opt/joern/joern
`), 0o600))

	t.Setenv(config.EnvWorkers, "7")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Dispatch.Workers, "env overrides file")
	assert.Equal(t, "/data/funcs.csv", cfg.Source.Path)
	assert.Equal(t, "before", cfg.Source.Columns.Content, "absent keys keep defaults")
	assert.Equal(t, "/opt/joern/joern", cfg.Backend.Command)
	assert.NotEmpty(t, cfg.Backend.Args, "default args survive a partial backend section")

	timeout, err := cfg.TaskTimeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, timeout)
}

func TestLoad_ExplicitPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, path, cfg.ConfigPath())
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dispatch: [unclosed"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")

	// New never fails; it falls back to defaults.
	t.Setenv(config.EnvConfig, path)
	cfg := config.New()
	require.NotNil(t, cfg)
	assert.Equal(t, runtime.NumCPU(), cfg.Dispatch.Workers)
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("GRAPHBATCH_BACKEND_COMMAND=/usr/local/bin/fake-parser\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(config.EnvBackendCommand) })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/fake-parser", cfg.Backend.Command)
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	cfg := config.Defaults()
	cfg.Dispatch.Workers = 5
	cfg.Source.Format = config.FormatJSONL
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg.SetConfigPath(path)
	require.NoError(t, cfg.Save())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Dispatch.Workers)
	assert.Equal(t, config.FormatJSONL, loaded.Source.Format)
	assert.Equal(t, cfg.Backend.Args, loaded.Backend.Args)
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{
			name:    "zero workers",
			mutate:  func(c *config.Config) { c.Dispatch.Workers = 0 },
			wantErr: "dispatch.workers",
		},
		{
			name:    "negative limit",
			mutate:  func(c *config.Config) { c.Source.Limit = -1 },
			wantErr: "source.limit",
		},
		{
			name:    "bad timeout",
			mutate:  func(c *config.Config) { c.Dispatch.TaskTimeout = "soon" },
			wantErr: "dispatch.task_timeout",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *config.Config) { c.Dispatch.TaskTimeout = "-1s" },
			wantErr: "dispatch.task_timeout",
		},
		{
			name:    "unknown format",
			mutate:  func(c *config.Config) { c.Source.Format = "xlsx" },
			wantErr: "source.format",
		},
		{
			name:    "missing command",
			mutate:  func(c *config.Config) { c.Backend.Command = "" },
			wantErr: "backend.command",
		},
		{
			name:    "bad version constraint",
			mutate:  func(c *config.Config) { c.Backend.VersionConstraint = ">>> 1" },
			wantErr: "backend.version_constraint",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *config.Config) { c.Artifacts.Backend = config.ArtifactBackendS3 },
			wantErr: "artifacts.s3",
		},
		{
			name:    "unknown artifact backend",
			mutate:  func(c *config.Config) { c.Artifacts.Backend = "ftp" },
			wantErr: "artifacts.backend",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:   "upper-case log level",
			mutate: func(c *config.Config) { c.Logging.Level = "WARN" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	isolate(t)
	cfg := config.Defaults()
	cfg.Dispatch.Workers = 0
	cfg.Backend.Command = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch.workers")
	assert.Contains(t, err.Error(), "backend.command")
}
