package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/watch"
)

var (
	watchSettle    time.Duration
	watchExisting  bool
	watchPolicy    string
	watchNoFigures bool
)

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "Quiet period before a new file is ingested")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Ingest PDFs already in the directories first")
	watchCmd.Flags().StringVar(&watchPolicy, "duplicate-policy", "", "Override duplicate policy: reject or replace")
	watchCmd.Flags().BoolVar(&watchNoFigures, "no-figures", false, "Skip page rendering and captioning")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Ingest PDFs as they appear in directories",
	Long: `Watch directories and ingest each new or rewritten PDF once it stops changing.

Results are printed one JSON object per line. Stop with Ctrl-C.

Example:
  prag watch ~/papers/inbox --existing`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchPolicy != "" {
		if err := validatePolicyFlag(watchPolicy); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	mustRequireAPIKey()
	a := mustOpenApp()
	defer a.Close()
	a.mustValidateEmbedder()

	ctx, cancel := commandContext(0)
	defer cancel()

	pipeline, writer := a.pipeline(pipelineOptions{policy: watchPolicy, noFigures: watchNoFigures})
	recoverPending(ctx, writer)

	w, err := watch.New(watch.Options{Settle: watchSettle})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer w.Close()
	for _, dir := range args {
		if err := w.Add(dir); err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
	}

	report := func(res IngestResult) {
		if humanOutput {
			printIngestResultHuman(res)
		} else {
			outputJSONLine(res)
		}
	}

	if watchExisting {
		paths, err := collectPDFs(args)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			report(ingestOne(ctx, pipeline, path))
		}
	}

	if humanOutput {
		outputHuman("Watching %d directories (Ctrl-C to stop)\n", len(args))
	}
	err = w.Run(ctx, func(ctx context.Context, path string) {
		report(ingestOne(ctx, pipeline, path))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		exitWithError(ExitError, "watching: %v", err)
	}
	return nil
}
