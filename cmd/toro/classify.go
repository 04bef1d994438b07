package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Veraticus/toro/internal/cli"
	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/engine"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify stored movements",
		Long: `Classify stored movements with learned rules first and the rule cascade second.

The whole batch runs in one transaction: it is either fully written or not at all.
Movements classified manually are never modified.`,
		Example: `  # Classify movements that have no category yet
  toro classify

  # Reclassify everything imported in batch 12 without writing
  toro classify --all --batch 12 --dry-run

  # Revisit low-confidence movements of March
  toro classify --all --month 2024-03 --confidence-below 80`,
		RunE: runClassify,
	}

	addFilterFlags(cmd)
	cmd.Flags().Bool("all", false, "include movements that already have a category")
	cmd.Flags().Bool("dry-run", false, "classify without writing anything")
	cmd.Flags().Bool("json", false, "print the summary as JSON")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	classifier, err := loadClassifier()
	if err != nil {
		return err
	}

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	filter := filterFromFlags(cmd)
	filter.OnlyUncategorized = appConfig.Classification.OnlyUncategorized
	if all, _ := cmd.Flags().GetBool("all"); all {
		filter.OnlyUncategorized = false
	}

	config := engine.DefaultConfig()
	config.PatternWords = appConfig.Learned.PatternWords
	config.DryRun = appConfig.Classification.DryRun
	if cmd.Flags().Changed("dry-run") {
		config.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	var progress *cli.Progress
	if !asJSON && !noProgress {
		progress = cli.NewProgress(os.Stderr, "Classifying")
		config.Progress = progress.Update
	}

	common.LogDebug(ctx, "Starting classification", common.Fields{
		"catalog_version":    classifier.Version(),
		"only_uncategorized": filter.OnlyUncategorized,
		"dry_run":            config.DryRun,
	})

	summary, err := engine.New(store, classifier, config).Classify(ctx, filter)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return fmt.Errorf("classification failed, no changes were written: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	cmd.Println(cli.RenderSummary(summary))
	if summary.DryRun {
		cmd.Println(cli.FormatWarning("Dry run: nothing was written"))
	}
	return nil
}
