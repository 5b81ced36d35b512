// Package config loads graphbatch configuration.
//
// Values are resolved in increasing precedence: built-in defaults, the YAML
// config file (~/.graphbatch/config.yaml or --config), a .env file in the
// working directory, GRAPHBATCH_* environment variables, and finally CLI flags
// applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rshade/graphbatch/internal/logging"
)

// Source formats understood by the record source layer.
const (
	FormatParquet  = "parquet"
	FormatCSV      = "csv"
	FormatJSONL    = "jsonl"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Artifact store backends.
const (
	ArtifactBackendFile   = "file"
	ArtifactBackendS3     = "s3"
	ArtifactBackendMemory = "memory"
)

const (
	defaultConfigFile   = "config.yaml"
	defaultDatasetName  = "minimal_bigvul_False.pq"
	defaultTable        = "records"
	defaultCommand      = "joern"
	defaultInputExt     = "c"
	defaultRetryBackoff = "1s"
	defaultLogInterval  = "5s"
	defaultCacheSize    = 4096
	defaultS3Region     = "us-east-1"
)

// Config is the top-level graphbatch configuration.
type Config struct {
	Source    SourceConfig   `yaml:"source"`
	Dispatch  DispatchConfig `yaml:"dispatch"`
	Backend   BackendConfig  `yaml:"backend"`
	Artifacts ArtifactConfig `yaml:"artifacts"`
	Progress  ProgressConfig `yaml:"progress"`
	Logging   LoggingConfig  `yaml:"logging"`

	configPath string
}

// SourceConfig describes where records are read from.
type SourceConfig struct {
	Format  string        `yaml:"format,omitempty"`
	Path    string        `yaml:"path,omitempty"`
	DSN     string        `yaml:"dsn,omitempty"`
	Table   string        `yaml:"table,omitempty"`
	Columns ColumnsConfig `yaml:"columns"`
	Limit   int           `yaml:"limit,omitempty"`
}

// ColumnsConfig maps record fields to source column names.
type ColumnsConfig struct {
	Content string `yaml:"content"`
	Group   string `yaml:"group"`
	ID      string `yaml:"id"`
}

// DispatchConfig sizes the worker pool.
type DispatchConfig struct {
	Workers      int    `yaml:"workers"`
	QueueSize    int    `yaml:"queue_size,omitempty"`
	TaskTimeout  string `yaml:"task_timeout,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	RetryBackoff string `yaml:"retry_backoff,omitempty"`
}

// BackendConfig describes how the external parser is invoked.
type BackendConfig struct {
	Command           string   `yaml:"command"`
	Args              []string `yaml:"args,omitempty"`
	VersionArgs       []string `yaml:"version_args,omitempty"`
	VersionConstraint string   `yaml:"version_constraint,omitempty"`
	WorkDir           string   `yaml:"work_dir"`
	InputExt          string   `yaml:"input_ext,omitempty"`
	SkipExisting      bool     `yaml:"skip_existing"`
	KeepWorkDir       bool     `yaml:"keep_work_dir,omitempty"`
}

// ArtifactConfig selects where parser outputs are persisted.
type ArtifactConfig struct {
	Backend   string   `yaml:"backend"`
	Dir       string   `yaml:"dir,omitempty"`
	CacheSize int      `yaml:"cache_size,omitempty"`
	S3        S3Config `yaml:"s3,omitempty"`
}

// S3Config configures the S3-compatible artifact backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

// ProgressConfig controls progress reporting.
type ProgressConfig struct {
	Disabled    bool   `yaml:"disabled,omitempty"`
	LogInterval string `yaml:"log_interval,omitempty"`
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// Defaults returns the built-in configuration rooted at the graphbatch home directory.
func Defaults() *Config {
	home, err := GetConfigDir()
	if err != nil {
		home = filepath.Join(os.TempDir(), ".graphbatch")
	}

	return &Config{
		Source: SourceConfig{
			Path:  filepath.Join(home, "cache", "minimal_datasets", defaultDatasetName),
			Table: defaultTable,
			Columns: ColumnsConfig{
				Content: "before",
				Group:   "dataset",
				ID:      "id",
			},
		},
		Dispatch: DispatchConfig{
			Workers:      runtime.NumCPU(),
			TaskTimeout:  "0s",
			RetryBackoff: defaultRetryBackoff,
		},
		Backend: BackendConfig{
			Command:      defaultCommand,
			Args:         []string{"--script", "get_func_graph.sc", "--params", "filename={input}"},
			VersionArgs:  []string{"--version"},
			WorkDir:      filepath.Join(home, "cache", "joern"),
			InputExt:     defaultInputExt,
			SkipExisting: true,
		},
		Artifacts: ArtifactConfig{
			Backend:   ArtifactBackendFile,
			Dir:       filepath.Join(home, "cache", "artifacts"),
			CacheSize: defaultCacheSize,
			S3:        S3Config{Region: defaultS3Region},
		},
		Progress: ProgressConfig{
			LogInterval: defaultLogInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		configPath: filepath.Join(home, defaultConfigFile),
	}
}

// New returns the effective configuration from the default config path.
// Load errors are reported on stderr and the defaults (plus environment) are used.
func New() *Config {
	cfg, err := Load("")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
		cfg = Defaults()
		cfg.applyEnv()
	}
	return cfg
}

// Load builds the configuration from path (or the default path when empty),
// then applies .env and GRAPHBATCH_* overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		cfg.configPath = path
	}

	if _, err := os.Stat(cfg.configPath); err == nil {
		if mergeErr := ShallowMergeYAML(cfg, cfg.configPath); mergeErr != nil {
			return nil, fmt.Errorf("loading config: %w", mergeErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot access config path %s: %w", cfg.configPath, err)
	}

	// A missing .env is the common case.
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

// ConfigPath returns the path the configuration was (or will be) read from.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath overrides the path used by Save.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Save writes the configuration as YAML to ConfigPath.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config path is not set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if writeErr := os.WriteFile(c.configPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("writing config %s: %w", c.configPath, writeErr)
	}
	return nil
}

// TaskTimeout returns the parsed per-task timeout (0 means none).
func (c *Config) TaskTimeout() (time.Duration, error) {
	return parseDuration("dispatch.task_timeout", c.Dispatch.TaskTimeout)
}

// RetryBackoff returns the parsed initial retry backoff.
func (c *Config) RetryBackoff() (time.Duration, error) {
	return parseDuration("dispatch.retry_backoff", c.Dispatch.RetryBackoff)
}

// ProgressInterval returns the parsed interval between progress log lines.
func (c *Config) ProgressInterval() (time.Duration, error) {
	return parseDuration("progress.log_interval", c.Progress.LogInterval)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %s", field, value)
	}
	return d, nil
}

// Validate checks the configuration for semantic errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Dispatch.Workers < 1 {
		errs = append(errs, fmt.Errorf("dispatch.workers must be >= 1, got %d", c.Dispatch.Workers))
	}
	if c.Dispatch.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dispatch.queue_size must be >= 0, got %d", c.Dispatch.QueueSize))
	}
	if c.Dispatch.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_retries must be >= 0, got %d", c.Dispatch.MaxRetries))
	}
	if c.Source.Limit < 0 {
		errs = append(errs, fmt.Errorf("source.limit must be >= 0, got %d", c.Source.Limit))
	}
	if _, err := c.TaskTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RetryBackoff(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ProgressInterval(); err != nil {
		errs = append(errs, err)
	}

	switch c.Source.Format {
	case "", FormatParquet, FormatCSV, FormatJSONL, FormatSQLite, FormatPostgres:
	default:
		errs = append(errs, fmt.Errorf("source.format %q is not supported", c.Source.Format))
	}
	if c.Source.Path == "" && c.Source.DSN == "" {
		errs = append(errs, errors.New("source.path or source.dsn is required"))
	}
	if c.Source.Columns.Content == "" || c.Source.Columns.Group == "" || c.Source.Columns.ID == "" {
		errs = append(errs, errors.New("source.columns.content, group and id must all be set"))
	}

	if c.Backend.Command == "" {
		errs = append(errs, errors.New("backend.command is required"))
	}
	if c.Backend.WorkDir == "" {
		errs = append(errs, errors.New("backend.work_dir is required"))
	}
	if c.Backend.VersionConstraint != "" {
		if _, err := semver.NewConstraint(c.Backend.VersionConstraint); err != nil {
			errs = append(errs, fmt.Errorf("backend.version_constraint: %w", err))
		}
	}

	switch c.Artifacts.Backend {
	case ArtifactBackendFile:
		if c.Artifacts.Dir == "" {
			errs = append(errs, errors.New("artifacts.dir is required for the file backend"))
		}
	case ArtifactBackendS3:
		if c.Artifacts.S3.Endpoint == "" || c.Artifacts.S3.Bucket == "" {
			errs = append(errs, errors.New("artifacts.s3.endpoint and artifacts.s3.bucket are required for the s3 backend"))
		}
	case ArtifactBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend %q is not supported", c.Artifacts.Backend))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not supported", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", logging.FormatJSON, logging.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not supported", c.Logging.Format))
	}

	return errors.Join(errs...)
}
