package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/locbench/pkg/config"
	"github.com/Sumatoshi-tech/locbench/pkg/dataset"
	"github.com/Sumatoshi-tech/locbench/pkg/framework"
	"github.com/Sumatoshi-tech/locbench/pkg/gitlib"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/report"
	"github.com/Sumatoshi-tech/locbench/pkg/sink"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

// ErrPreflight marks a required executable that is missing or broken.
var ErrPreflight = errors.New("preflight check failed")

// ErrInterrupted is returned after a canceled run has written its partial output.
var ErrInterrupted = errors.New("run interrupted")

// gitTool is the git surface the analyze and augment commands use.
type gitTool interface {
	framework.Git
	dataset.SparseCloner

	Version(ctx context.Context) (string, error)
}

// counterTool is the line counter surface the analyze command uses.
type counterTool interface {
	framework.Counter

	Check(ctx context.Context) (string, error)
}

type toolFactory struct {
	git     func(env *runEnv) gitTool
	counter func(env *runEnv) (counterTool, error)
}

func defaultTools() toolFactory {
	return toolFactory{git: newGitClient, counter: newCounter}
}

func newGitClient(env *runEnv) gitTool {
	cfg := env.cfg

	return gitlib.NewClient(
		gitlib.WithBinary(cfg.Git.Binary),
		gitlib.WithPolicy(cfg.Retry),
		gitlib.WithTimeouts(cfg.Git.CloneTimeout, cfg.Git.CheckoutTimeout),
		gitlib.WithLogger(env.logger),
		gitlib.WithMetrics(env.metrics),
	)
}

func newCounter(env *runEnv) (counterTool, error) {
	cfg := env.cfg

	return loc.NewCounter(
		loc.WithBinary(cfg.Counter.Binary),
		loc.WithArgs(cfg.Counter.Args...),
		loc.WithTimeout(cfg.Counter.Timeout),
	)
}

// AnalyzeCommand holds flags and dependencies of the analyze command.
type AnalyzeCommand struct {
	fetch       bool
	cpuprofile  string
	heapprofile string
	tools       toolFactory
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	return newAnalyzeCommandWithTools(defaultTools())
}

func newAnalyzeCommandWithTools(tools toolFactory) *cobra.Command {
	ac := &AnalyzeCommand{tools: tools}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Count lines of code for every task of an eval set",
		Long: `Clone each task's repository once, check out every task commit in turn,
count lines of code per language and write one CSV row per task in dataset
order. Tasks that cannot be measured are written with zero counts and listed
in the run summary.`,
		Args: cobra.NoArgs,
		RunE: ac.run,
	}

	addCommonFlags(cmd)

	cmd.Flags().StringP("output", "o", "", "Output CSV (default: <eval_set>_loc_stats.csv)")
	cmd.Flags().String("summary", "", "Write the run summary as YAML to this file")
	cmd.Flags().IntP("concurrency", "j", 8, "Repositories processed in parallel")
	cmd.Flags().Int("max-tasks", 0, "Only analyze the first N tasks (0 = all)")
	cmd.Flags().String("work-dir", "", "Directory for clones (default: a temporary directory)")
	cmd.Flags().Float64("clone-rate", 0, "Maximum clone starts per second (0 = unlimited)")
	cmd.Flags().Bool("fetch-missing", true, "Fetch commits missing from the clone before giving up")
	cmd.Flags().String("scc", "scc", "Line counter executable")
	cmd.Flags().String("git", "git", "Git executable")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&ac.fetch, flagFetch, false, "Fetch the swe-lancer issue tree instead of reading --dataset")
	cmd.Flags().StringVar(&ac.cpuprofile, "cpuprofile", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&ac.heapprofile, "heapprofile", "", "Write heap profile to file")

	return cmd
}

var analyzeBindings = map[string]string{
	"output.path":            "output",
	"output.summary_path":    "summary",
	"pipeline.concurrency":   "concurrency",
	"pipeline.max_tasks":     "max-tasks",
	"pipeline.work_dir":      "work-dir",
	"pipeline.clone_rate":    "clone-rate",
	"pipeline.fetch_missing": "fetch-missing",
	"counter.binary":         "scc",
	"git.binary":             "git",
	"telemetry.metrics_addr": "metrics-addr",
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd, observability.ModeAnalyze, analyzeBindings)
	if err != nil {
		return err
	}
	defer env.close()

	stopProfile, err := observability.StartCPUProfile(ac.cpuprofile)
	if err != nil {
		return err
	}
	defer stopProfile()
	defer observability.WriteHeapProfile(ac.heapprofile, env.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := env.cfg
	git := ac.tools.git(env)

	counter, err := ac.tools.counter(env)
	if err != nil {
		return err
	}

	err = preflight(ctx, env, git, counter)
	if err != nil {
		return err
	}

	root, cleanup, err := workRoot(cfg.Pipeline.WorkDir)
	if err != nil {
		return err
	}
	defer cleanup()

	dirs, err := workdir.NewManager(root)
	if err != nil {
		return err
	}

	tasks, err := loadTasks(ctx, env, ac.fetch, git, dirs)
	if err != nil {
		return err
	}

	tasks, err = task.Limit(tasks, cfg.Pipeline.MaxTasks)
	if err != nil {
		return err
	}

	if cfg.Telemetry.MetricsAddr != "" {
		addr, serveErr := observability.ServeMetrics(ctx, cfg.Telemetry.MetricsAddr, env.providers.MetricsHandler, env.logger)
		if serveErr != nil {
			return serveErr
		}

		env.logger.InfoContext(ctx, "serving metrics", "addr", addr)
	}

	worker := &framework.RepoWorker{
		Git:            git,
		Counter:        counter,
		Dirs:           dirs,
		RemoteTemplate: cfg.Git.RemoteTemplate,
		FetchMissing:   cfg.Pipeline.FetchMissing,
		CloneLimiter:   cloneLimiter(cfg.Pipeline),
		Tracer:         env.providers.Tracer,
		Metrics:        env.metrics,
		Logger:         env.logger,
	}

	sched := &framework.Scheduler{
		Processor:   worker,
		Concurrency: cfg.Pipeline.Concurrency,
		OnBatch:     progressPrinter(cmd.ErrOrStderr()),
		Metrics:     env.metrics,
		Logger:      env.logger,
	}

	started := time.Now()

	out, err := framework.Analyze(ctx, tasks, sched)
	if err != nil {
		return err
	}

	outPath := cfg.Output.Path
	if outPath == "" {
		outPath = defaultOutput(cfg.Dataset.EvalSet)
	}

	err = sink.WriteFile(outPath, func(w io.Writer) error { return sink.WriteLocStats(w, out.Rows) })
	if err != nil {
		return err
	}

	env.logger.InfoContext(ctx, "wrote loc stats", "path", outPath, "rows", len(out.Rows), "missing", out.MissingCount())

	summary := report.NewRunSummary(env.runID, cfg.Dataset.EvalSet, started, out)
	summary.Output = outPath

	err = summary.Render(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if cfg.Output.SummaryPath != "" {
		err = sink.WriteFile(cfg.Output.SummaryPath, summary.WriteYAML)
		if err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}

	return nil
}

// preflight verifies both executables before any task is scheduled.
func preflight(ctx context.Context, env *runEnv, git gitTool, counter counterTool) error {
	gitVersion, err := git.Version(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPreflight, err)
	}

	counterVersion, err := counter.Check(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPreflight, err)
	}

	env.logger.InfoContext(ctx, "tools ready", "git", gitVersion, "counter", counterVersion)

	return nil
}

// progressPrinter reports each finished repository on w.
func progressPrinter(w io.Writer) func(b framework.Batch, done, total int) {
	return func(b framework.Batch, done, total int) {
		missing := fmt.Sprintf("%d missing", len(b.Missing))
		if len(b.Missing) > 0 {
			missing = color.New(color.FgYellow).Sprint(missing)
		}

		fmt.Fprintf(w, "[%d/%d] %s: %d measured, %s\n", done, total, b.Repo, len(b.Results), missing)
	}
}

func cloneLimiter(p config.PipelineConfig) *rate.Limiter {
	if p.CloneRate <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(p.CloneRate), max(p.CloneBurst, 1))
}
