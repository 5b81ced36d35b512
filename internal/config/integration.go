package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Environment variables recognised by graphbatch.
const (
	EnvHome             = "GRAPHBATCH_HOME"
	EnvConfig           = "GRAPHBATCH_CONFIG"
	EnvWorkers          = "GRAPHBATCH_WORKERS"
	EnvTaskTimeout      = "GRAPHBATCH_TASK_TIMEOUT"
	EnvMaxRetries       = "GRAPHBATCH_MAX_RETRIES"
	EnvSource           = "GRAPHBATCH_SOURCE"
	EnvSourceFormat     = "GRAPHBATCH_SOURCE_FORMAT"
	EnvSourceDSN        = "GRAPHBATCH_SOURCE_DSN"
	EnvSourceTable      = "GRAPHBATCH_SOURCE_TABLE"
	EnvLimit            = "GRAPHBATCH_LIMIT"
	EnvBackendCommand   = "GRAPHBATCH_BACKEND_COMMAND"
	EnvBackendWorkDir   = "GRAPHBATCH_BACKEND_WORK_DIR"
	EnvArtifactBackend  = "GRAPHBATCH_ARTIFACT_BACKEND"
	EnvArtifactDir      = "GRAPHBATCH_ARTIFACT_DIR"
	EnvS3Endpoint       = "GRAPHBATCH_S3_ENDPOINT"
	EnvS3Region         = "GRAPHBATCH_S3_REGION"
	EnvS3AccessKey      = "GRAPHBATCH_S3_ACCESS_KEY"
	EnvS3SecretKey      = "GRAPHBATCH_S3_SECRET_KEY"
	EnvS3Bucket         = "GRAPHBATCH_S3_BUCKET"
	EnvS3UseSSL         = "GRAPHBATCH_S3_USE_SSL"
	EnvLogLevel         = "GRAPHBATCH_LOG_LEVEL"
	EnvLogFormat        = "GRAPHBATCH_LOG_FORMAT"
	EnvLogFile          = "GRAPHBATCH_LOG_FILE"
	EnvProgressDisabled = "GRAPHBATCH_NO_PROGRESS"
)

// GlobalConfig holds the global configuration instance.
var GlobalConfig *Config        //nolint:gochecknoglobals // Singleton pattern for configuration
var globalConfigMu sync.RWMutex //nolint:gochecknoglobals // Protects GlobalConfig and globalConfigInit
var globalConfigInit bool       //nolint:gochecknoglobals // Tracks if global config has been initialized

// InitGlobalConfig initializes the global configuration from the default path.
func InitGlobalConfig() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	if globalConfigInit {
		return
	}

	GlobalConfig = New()
	globalConfigInit = true
}

// SetGlobalConfig replaces the global configuration, e.g. after --config is parsed.
func SetGlobalConfig(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	GlobalConfig = cfg
	globalConfigInit = cfg != nil
}

// ResetGlobalConfigForTest resets the global config for testing purposes.
func ResetGlobalConfigForTest() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	GlobalConfig = nil
	globalConfigInit = false
}

// GetGlobalConfig returns the global configuration, initializing it if needed.
func GetGlobalConfig() *Config {
	InitGlobalConfig()

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return GlobalConfig
}

// GetConfigDir returns the graphbatch home directory ($GRAPHBATCH_HOME or ~/.graphbatch).
func GetConfigDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".graphbatch"), nil
}

// EnsureConfigDir ensures the graphbatch home directory exists.
func EnsureConfigDir() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// DefaultLogFile is where run logs go while the interactive progress view
// owns the terminal and no logging.file is configured.
func DefaultLogFile() string {
	home, err := GetConfigDir()
	if err != nil {
		home = filepath.Join(os.TempDir(), ".graphbatch")
	}
	return filepath.Join(home, "logs", "graphbatch.log")
}

// EnsureLogDir ensures the directory for the configured log file exists.
// It does nothing when no log file is configured.
func EnsureLogDir() error {
	cfg := GetGlobalConfig()
	if cfg.Logging.File == "" {
		return nil
	}
	logDir := filepath.Dir(cfg.Logging.File)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	return nil
}

// applyEnv overlays GRAPHBATCH_* environment variables. Unparseable numeric
// or boolean values are ignored so that Validate reports the file value.
func (c *Config) applyEnv() {
	setString(&c.Source.Path, EnvSource)
	setString(&c.Source.Format, EnvSourceFormat)
	setString(&c.Source.DSN, EnvSourceDSN)
	setString(&c.Source.Table, EnvSourceTable)
	setInt(&c.Source.Limit, EnvLimit)

	setInt(&c.Dispatch.Workers, EnvWorkers)
	setInt(&c.Dispatch.MaxRetries, EnvMaxRetries)
	setString(&c.Dispatch.TaskTimeout, EnvTaskTimeout)

	setString(&c.Backend.Command, EnvBackendCommand)
	setString(&c.Backend.WorkDir, EnvBackendWorkDir)

	setString(&c.Artifacts.Backend, EnvArtifactBackend)
	setString(&c.Artifacts.Dir, EnvArtifactDir)
	setString(&c.Artifacts.S3.Endpoint, EnvS3Endpoint)
	setString(&c.Artifacts.S3.Region, EnvS3Region)
	setString(&c.Artifacts.S3.AccessKey, EnvS3AccessKey)
	setString(&c.Artifacts.S3.SecretKey, EnvS3SecretKey)
	setString(&c.Artifacts.S3.Bucket, EnvS3Bucket)
	setBool(&c.Artifacts.S3.UseSSL, EnvS3UseSSL)

	setBool(&c.Progress.Disabled, EnvProgressDisabled)

	setString(&c.Logging.Level, EnvLogLevel)
	setString(&c.Logging.Format, EnvLogFormat)
	setString(&c.Logging.File, EnvLogFile)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}
