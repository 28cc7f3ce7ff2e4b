package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/export"
	"github.com/plasmarag/plasmarag/internal/ingest"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <papers.jsonl>",
	Short: "Commit exported paper records without re-extraction",
	Long: `Import papers written by 'prag export'.

Each record is re-embedded with this knowledge base's embedding model and
committed through the same duplicate gate and writer as 'prag ingest'.
No extraction or captioning model is called.

Example:
  prag import papers.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	papers, err := export.ReadJSONL(args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if papers == nil {
		exitWithError(ExitDataError, "no papers in %s", args[0])
	}

	a := mustOpenApp()
	defer a.Close()
	a.mustValidateEmbedder()

	ctx, cancel := commandContext(0)
	defer cancel()

	w := a.writer(a.dedup(string(dedup.PolicyReject)))
	recoverPending(ctx, w)

	summary := IngestSummary{Results: make([]IngestResult, 0, len(papers))}
	for _, rec := range papers {
		if ctx.Err() != nil {
			break
		}
		p := export.Restore(rec)
		_, err := w.Commit(ctx, p)
		res := ingestResult(ingest.FileResult{Path: args[0], Outcome: &ingest.Outcome{Paper: p}, Err: err})
		if res.Title == "" {
			res.Title = p.Title
		}
		summary.Results = append(summary.Results, res)
		switch res.Status {
		case "ingested":
			summary.Ingested++
		case "duplicate":
			summary.Duplicates++
		default:
			summary.Failed++
		}
	}

	if humanOutput {
		fmt.Printf("%d imported, %d duplicates, %d failed\n", summary.Ingested, summary.Duplicates, summary.Failed)
		for _, r := range summary.Results {
			if r.Status == "failed" {
				fmt.Printf("  %s: %s\n", r.Title, r.Error)
			}
		}
	} else {
		outputJSON(summary)
	}

	if summary.Failed > 0 {
		os.Exit(ExitWriteError)
	}
	return nil
}
