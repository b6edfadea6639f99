// Package config loads locbench settings from defaults, an optional YAML file
// and LOCBENCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/locbench/pkg/retry"
)

// Sentinel validation errors.
var (
	ErrInvalidConcurrency   = errors.New("pipeline concurrency must be positive")
	ErrInvalidMaxTasks      = errors.New("pipeline max tasks must not be negative")
	ErrInvalidCloneRate     = errors.New("clone rate and burst must not be negative")
	ErrInvalidTimeout       = errors.New("timeouts must not be negative")
	ErrInvalidRemote        = errors.New("git remote template must contain {repo}")
	ErrInvalidLogFormat     = errors.New("logging format must be json or text")
	ErrInvalidSampleRatio   = errors.New("telemetry sample ratio must be in [0, 1]")
	ErrInvalidRetry         = errors.New("invalid retry policy")
	ErrMissingCounterBinary = errors.New("counter binary must be set")
)

// Default configuration values.
const (
	defaultConcurrency     = 8
	defaultCloneBurst      = 1
	defaultRemoteTemplate  = "https://github.com/{repo}.git"
	defaultCloneTimeout    = "15m"
	defaultCheckoutTimeout = "5m"
	defaultCounterTimeout  = "10m"
	defaultSampleRatio     = 1.0
	envPrefix              = "LOCBENCH"
	configName             = "locbench"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config holds all locbench configuration.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Retry     retry.Policy    `mapstructure:"retry"`
	Git       GitConfig       `mapstructure:"git"`
	Counter   CounterConfig   `mapstructure:"counter"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PipelineConfig controls scheduling.
type PipelineConfig struct {
	WorkDir      string  `mapstructure:"work_dir"`
	CloneRate    float64 `mapstructure:"clone_rate"`
	Concurrency  int     `mapstructure:"concurrency"`
	MaxTasks     int     `mapstructure:"max_tasks"`
	CloneBurst   int     `mapstructure:"clone_burst"`
	FetchMissing bool    `mapstructure:"fetch_missing"`
}

// GitConfig controls the git executable.
type GitConfig struct {
	Binary          string        `mapstructure:"binary"`
	RemoteTemplate  string        `mapstructure:"remote_template"`
	CloneTimeout    time.Duration `mapstructure:"clone_timeout"`
	CheckoutTimeout time.Duration `mapstructure:"checkout_timeout"`
}

// CounterConfig controls the line counter executable.
type CounterConfig struct {
	Binary  string        `mapstructure:"binary"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatasetConfig selects the task source.
type DatasetConfig struct {
	EvalSet string `mapstructure:"eval_set"`
	Path    string `mapstructure:"path"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	Path        string `mapstructure:"path"`
	SummaryPath string `mapstructure:"summary_path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// New returns a viper instance with defaults, environment binding and the
// config file read. Callers may bind flags before calling Decode.
func New(configPath string) (*viper.Viper, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/locbench")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	return viperCfg, nil
}

// Decode unmarshals and validates the configuration held by viperCfg.
func Decode(viperCfg *viper.Viper) (*Config, error) {
	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg, err := New(configPath)
	if err != nil {
		return nil, err
	}

	return Decode(viperCfg)
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Pipeline defaults.
	viperCfg.SetDefault("pipeline.concurrency", defaultConcurrency)
	viperCfg.SetDefault("pipeline.max_tasks", 0)
	viperCfg.SetDefault("pipeline.work_dir", "")
	viperCfg.SetDefault("pipeline.clone_rate", 0)
	viperCfg.SetDefault("pipeline.clone_burst", defaultCloneBurst)
	viperCfg.SetDefault("pipeline.fetch_missing", true)

	// Retry defaults.
	viperCfg.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	viperCfg.SetDefault("retry.initial_backoff", retry.DefaultInitialBackoff.String())
	viperCfg.SetDefault("retry.max_backoff", retry.DefaultMaxBackoff.String())
	viperCfg.SetDefault("retry.multiplier", retry.DefaultMultiplier)
	viperCfg.SetDefault("retry.randomization", retry.DefaultRandomizationFactor)

	// Git defaults.
	viperCfg.SetDefault("git.binary", "git")
	viperCfg.SetDefault("git.remote_template", defaultRemoteTemplate)
	viperCfg.SetDefault("git.clone_timeout", defaultCloneTimeout)
	viperCfg.SetDefault("git.checkout_timeout", defaultCheckoutTimeout)

	// Counter defaults.
	viperCfg.SetDefault("counter.binary", "scc")
	viperCfg.SetDefault("counter.args", []string{})
	viperCfg.SetDefault("counter.timeout", defaultCounterTimeout)

	// Dataset defaults.
	viperCfg.SetDefault("dataset.eval_set", "swe-bench")
	viperCfg.SetDefault("dataset.path", "")

	// Output defaults.
	viperCfg.SetDefault("output.path", "")
	viperCfg.SetDefault("output.summary_path", "")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", FormatText)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.sample_ratio", defaultSampleRatio)
	viperCfg.SetDefault("telemetry.environment", "")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, config.Pipeline.Concurrency)
	}

	if config.Pipeline.MaxTasks < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTasks, config.Pipeline.MaxTasks)
	}

	if config.Pipeline.CloneRate < 0 || config.Pipeline.CloneBurst < 0 {
		return fmt.Errorf("%w: rate %g burst %d", ErrInvalidCloneRate, config.Pipeline.CloneRate, config.Pipeline.CloneBurst)
	}

	retryErr := config.Retry.Validate()
	if retryErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRetry, retryErr)
	}

	if !strings.Contains(config.Git.RemoteTemplate, "{repo}") {
		return fmt.Errorf("%w: %q", ErrInvalidRemote, config.Git.RemoteTemplate)
	}

	if config.Git.CloneTimeout < 0 || config.Git.CheckoutTimeout < 0 || config.Counter.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if config.Counter.Binary == "" {
		return ErrMissingCounterBinary
	}

	switch config.Logging.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}
