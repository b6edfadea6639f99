package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/locbench/pkg/config"
	"github.com/Sumatoshi-tech/locbench/pkg/dataset"
	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
	"github.com/Sumatoshi-tech/locbench/pkg/version"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

// Flags shared by several commands and the config keys they override.
const (
	flagEvalSet   = "eval-set"
	flagDataset   = "dataset"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagFetch     = "fetch"
)

var commonBindings = map[string]string{
	"dataset.eval_set": flagEvalSet,
	"dataset.path":     flagDataset,
	"logging.level":    flagLogLevel,
	"logging.format":   flagLogFormat,
}

// ErrFetchUnsupported is returned when --fetch is used with an eval set that
// has no remote source.
var ErrFetchUnsupported = errors.New("--fetch is only supported for swe-lancer")

// runEnv is what every command needs once configuration and telemetry are up.
type runEnv struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
	runID     string
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagEvalSet, dataset.SWEBench, "Eval set: "+strings.Join(dataset.EvalSets(), ", "))
	cmd.Flags().String(flagDataset, "", "Dataset file or directory of the eval set")
	cmd.Flags().String(flagLogLevel, "info", "Log level: debug, info, warn, error")
	cmd.Flags().String(flagLogFormat, config.FormatText, "Log format: text, json")
}

// setup loads configuration with flag overrides applied, then starts
// telemetry. The caller must call close.
func setup(cmd *cobra.Command, mode observability.AppMode, bindings ...map[string]string) (*runEnv, error) {
	configPath, _ := cmd.Flags().GetString(flagConfig)

	viperCfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}

	for _, set := range append([]map[string]string{commonBindings}, bindings...) {
		err = bindFlags(viperCfg, cmd.Flags(), set)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Decode(viperCfg)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == config.FormatJSON
	obsCfg.LogOutput = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(context.Background())

		return nil, fmt.Errorf("create pipeline metrics: %w", err)
	}

	runID := uuid.NewString()

	return &runEnv{
		cfg:       cfg,
		providers: providers,
		metrics:   metrics,
		logger:    observability.WithRun(providers.Logger, runID),
		runID:     runID,
	}, nil
}

// bindFlags lets each flag present in flags override its config key.
func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

func (e *runEnv) close() {
	err := e.providers.Shutdown(context.Background())
	if err != nil {
		e.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// workRoot returns the directory work directories are created under. An
// unset work_dir yields a temporary root removed by the returned cleanup.
func workRoot(configured string) (string, func(), error) {
	if configured != "" {
		return configured, func() {}, nil
	}

	root, err := os.MkdirTemp("", "locbench-")
	if err != nil {
		return "", nil, fmt.Errorf("create work root: %w", err)
	}

	return root, func() { _ = os.RemoveAll(root) }, nil
}

// loadTasks reads the configured eval set. With fetch, the swe-lancer issue
// tree is sparse-cloned first and read from the clone.
func loadTasks(ctx context.Context, env *runEnv, fetch bool, git dataset.SparseCloner, dirs *workdir.Manager) ([]task.Task, error) {
	loader := &dataset.Loader{EvalSet: env.cfg.Dataset.EvalSet, Path: env.cfg.Dataset.Path, Logger: env.logger}

	if fetch {
		if loader.EvalSet != dataset.SWELancer {
			return nil, fmt.Errorf("%w (eval set %s)", ErrFetchUnsupported, loader.EvalSet)
		}

		dir, issues, err := dataset.FetchSWELancer(ctx, git, dirs)
		if err != nil {
			return nil, err
		}

		defer func() { _ = dir.Release() }()

		env.logger.InfoContext(ctx, "fetched swe-lancer issues", "path", issues)
		loader.Path = issues
	}

	return loader.Load(ctx)
}

// defaultOutput names the LOC table after the eval set.
func defaultOutput(evalSet string) string {
	return strings.ReplaceAll(evalSet, "-", "_") + "_loc_stats.csv"
}

// augmentedPath derives the augmented table path from a LOC table path.
func augmentedPath(input string) string {
	ext := filepath.Ext(input)

	return strings.TrimSuffix(input, ext) + "_augmented.csv"
}
