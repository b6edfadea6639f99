package commands

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locbench/pkg/dataset"
	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/sink"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

// AugmentCommand holds flags and dependencies of the augment command.
type AugmentCommand struct {
	output string
	fetch  bool
	tools  toolFactory
}

// NewAugmentCommand creates the augment command.
func NewAugmentCommand() *cobra.Command {
	return newAugmentCommandWithTools(defaultTools())
}

func newAugmentCommandWithTools(tools toolFactory) *cobra.Command {
	ac := &AugmentCommand{tools: tools}

	cmd := &cobra.Command{
		Use:   "augment <loc_stats.csv>",
		Short: "Add golden patch sizes to a LOC table",
		Long: `Read a LOC table written by analyze and append golden_patch_added,
golden_patch_deleted and golden_patch_total, computed from the patches of the
eval set. Rows without a patch get zeros.`,
		Args: cobra.ExactArgs(1),
		RunE: ac.run,
	}

	addCommonFlags(cmd)

	cmd.Flags().StringVarP(&ac.output, "output", "o", "", "Output CSV (default: <input>_augmented.csv)")
	cmd.Flags().BoolVar(&ac.fetch, flagFetch, false, "Fetch the swe-lancer issue tree instead of reading --dataset")

	return cmd
}

func (ac *AugmentCommand) run(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd, observability.ModeAugment)
	if err != nil {
		return err
	}
	defer env.close()

	ctx := cmd.Context()
	input := args[0]

	var (
		git  dataset.SparseCloner
		dirs *workdir.Manager
	)

	if ac.fetch {
		root, cleanup, rootErr := workRoot(env.cfg.Pipeline.WorkDir)
		if rootErr != nil {
			return rootErr
		}
		defer cleanup()

		dirs, err = workdir.NewManager(root)
		if err != nil {
			return err
		}

		git = ac.tools.git(env)
	}

	tasks, err := loadTasks(ctx, env, ac.fetch, git, dirs)
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open %s: %w", input, err)
	}
	defer in.Close()

	output := ac.output
	if output == "" {
		output = augmentedPath(input)
	}

	var stats sink.AugmentStats

	err = sink.WriteFile(output, func(w io.Writer) error {
		var augErr error
		stats, augErr = sink.Augment(ctx, in, w, dataset.Patches(tasks), env.logger)

		return augErr
	})
	if err != nil {
		return err
	}

	env.logger.InfoContext(ctx, "wrote augmented table", "path", output, "rows", stats.Rows, "missing_patches", stats.MissingPatches)

	return writeAugmentSummary(cmd.OutOrStdout(), output, stats)
}

func writeAugmentSummary(w io.Writer, output string, stats sink.AugmentStats) error {
	_, err := fmt.Fprintf(w, "Augmented %s rows -> %s (missing patches: %s)\nPatch lines: +%s -%s\n",
		humanize.Comma(int64(stats.Rows)), output, humanize.Comma(int64(stats.MissingPatches)),
		humanize.Comma(int64(stats.Patch.Added)), humanize.Comma(int64(stats.Patch.Deleted)))
	if err != nil {
		return fmt.Errorf("write augment summary: %w", err)
	}

	langs := make([]string, 0, len(stats.ByLanguage))
	for lang := range stats.ByLanguage {
		langs = append(langs, lang)
	}

	slices.SortFunc(langs, func(a, b string) int {
		return cmp.Or(cmp.Compare(stats.ByLanguage[b].Total(), stats.ByLanguage[a].Total()), cmp.Compare(a, b))
	})

	for _, lang := range langs {
		s := stats.ByLanguage[lang]

		_, err = fmt.Fprintf(w, "  %-12s +%s -%s\n", lang, humanize.Comma(int64(s.Added)), humanize.Comma(int64(s.Deleted)))
		if err != nil {
			return fmt.Errorf("write augment summary: %w", err)
		}
	}

	return nil
}
