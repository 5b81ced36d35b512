package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConfig(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)

	cfg := GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Same(t, cfg, GetGlobalConfig())

	custom := Defaults()
	custom.Dispatch.Workers = 2
	SetGlobalConfig(custom)
	assert.Same(t, custom, GetGlobalConfig())

	ResetGlobalConfigForTest()
	assert.NotSame(t, custom, GetGlobalConfig())
}

func TestGetConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, home, dir)

	t.Setenv(EnvHome, "")
	t.Setenv("HOME", home)
	dir, err = GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".graphbatch"), dir)
}

func TestEnsureLogDir(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)

	logFile := filepath.Join(t.TempDir(), "logs", "run.log")
	cfg := Defaults()
	cfg.Logging.File = logFile
	SetGlobalConfig(cfg)

	require.NoError(t, EnsureLogDir())
	assert.DirExists(t, filepath.Dir(logFile))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvWorkers, "12")
	t.Setenv(EnvLimit, "not-a-number")
	t.Setenv(EnvSourceFormat, "jsonl")
	t.Setenv(EnvS3UseSSL, "true")
	t.Setenv(EnvLogLevel, "warn")

	cfg := Defaults()
	cfg.applyEnv()

	assert.Equal(t, 12, cfg.Dispatch.Workers)
	assert.Equal(t, 0, cfg.Source.Limit, "unparseable values are ignored")
	assert.Equal(t, "jsonl", cfg.Source.Format)
	assert.True(t, cfg.Artifacts.S3.UseSSL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestToLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json"}
	out := lc.ToLoggingConfig()
	assert.Equal(t, "stderr", out.Output)

	lc.File = "/var/log/graphbatch.log"
	out = lc.ToLoggingConfig()
	assert.Equal(t, "file", out.Output)
	assert.Equal(t, "/var/log/graphbatch.log", out.File)
}
