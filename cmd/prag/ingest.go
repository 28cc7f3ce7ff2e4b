package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/extract"
	"github.com/plasmarag/plasmarag/internal/ingest"
)

var (
	ingestWorkers   int
	ingestPolicy    string
	ingestNoFigures bool
	ingestNoRecover bool
)

func init() {
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 2, "Papers ingested concurrently when given a directory")
	ingestCmd.Flags().StringVar(&ingestPolicy, "duplicate-policy", "", "Override duplicate policy: reject or replace")
	ingestCmd.Flags().BoolVar(&ingestNoFigures, "no-figures", false, "Skip page rendering and captioning")
	ingestCmd.Flags().BoolVar(&ingestNoRecover, "no-recover", false, "Skip completing interrupted commits first")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf|dir>...",
	Short: "Ingest PDFs into the knowledge base",
	Long: `Ingest one or more PDFs. Directories are searched recursively for *.pdf.

Each paper goes through structured extraction, optional figure captioning,
duplicate detection and a commit that keeps the store and both vector
indices consistent. A failure in one file does not stop the others.

Examples:
  prag ingest papers/chain-formation.pdf
  prag ingest papers/ --workers 4
  prag ingest new-version.pdf --duplicate-policy replace`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

// IngestResult is the per-file response of the ingest command.
type IngestResult struct {
	Path            string `json:"path"`
	Status          string `json:"status"` // ingested, duplicate, failed
	ID              string `json:"id,omitempty"`
	Title           string `json:"title,omitempty"`
	Supersedes      string `json:"supersedes,omitempty"`
	Resumed         bool   `json:"resumed,omitempty"`
	Figures         int    `json:"figures,omitempty"`
	CaptionFailures int    `json:"caption_failures,omitempty"`
	ExistingID      string `json:"existing_id,omitempty"`
	Stage           string `json:"stage,omitempty"` // extraction stage that failed
	Error           string `json:"error,omitempty"`
}

// IngestSummary is the response of the ingest command.
type IngestSummary struct {
	Ingested   int            `json:"ingested"`
	Duplicates int            `json:"duplicates"`
	Failed     int            `json:"failed"`
	Results    []IngestResult `json:"results"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestPolicy != "" {
		if err := validatePolicyFlag(ingestPolicy); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	paths, err := collectPDFs(args)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if len(paths) == 0 {
		exitWithError(ExitDataError, "no PDF files found")
	}

	mustRequireAPIKey()
	a := mustOpenApp()
	defer a.Close()
	a.mustValidateEmbedder()

	ctx, cancel := commandContext(0)
	defer cancel()

	pipeline, writer := a.pipeline(pipelineOptions{policy: ingestPolicy, noFigures: ingestNoFigures})
	if !ingestNoRecover {
		recoverPending(ctx, writer)
	}

	results, err := pipeline.IngestAll(ctx, paths, ingestWorkers)
	if err != nil && results == nil {
		exitWithErr(err, "ingesting")
	}

	summary := summarizeIngest(results)
	if humanOutput {
		printIngestHuman(summary)
	} else {
		outputJSON(summary)
	}

	// A single file reports its own failure class
	if len(results) == 1 && results[0].Err != nil {
		os.Exit(exitCodeFor(results[0].Err))
	}
	if summary.Failed > 0 {
		os.Exit(ExitError)
	}
	return nil
}

func summarizeIngest(results []ingest.FileResult) IngestSummary {
	summary := IngestSummary{Results: make([]IngestResult, 0, len(results))}
	for _, r := range results {
		summary.Results = append(summary.Results, ingestResult(r))
		switch summary.Results[len(summary.Results)-1].Status {
		case "ingested":
			summary.Ingested++
		case "duplicate":
			summary.Duplicates++
		default:
			summary.Failed++
		}
	}
	return summary
}

func ingestResult(r ingest.FileResult) IngestResult {
	res := IngestResult{Path: r.Path}

	var dup *dedup.DuplicateError
	switch {
	case r.Err == nil && r.Outcome != nil:
		res.Status = "ingested"
		res.ID = r.Outcome.Paper.ID
		res.Title = r.Outcome.Paper.Title
		res.Supersedes = r.Outcome.Supersedes
		res.Resumed = r.Outcome.Resumed
		res.Figures = r.Outcome.Figures
		res.CaptionFailures = r.Outcome.CaptionFailures
	case errors.As(r.Err, &dup):
		res.Status = "duplicate"
		res.ExistingID = dup.ExistingID
		res.Title = dup.Title
	default:
		res.Status = "failed"
		if r.Err != nil {
			res.Error = r.Err.Error()
			res.Stage = string(extract.FailedStage(r.Err))
		}
		var werr *ingest.WriteError
		if errors.As(r.Err, &werr) && werr.Retryable() {
			res.Error += " (run 'prag recover', then retry)"
		}
	}
	return res
}

func printIngestHuman(summary IngestSummary) {
	for _, r := range summary.Results {
		printIngestResultHuman(r)
	}
	fmt.Printf("\n%d ingested, %d duplicates, %d failed\n", summary.Ingested, summary.Duplicates, summary.Failed)
}

func printIngestResultHuman(r IngestResult) {
	switch r.Status {
	case "ingested":
		fmt.Printf("ingested  %s\n          %s (%s)\n", r.Path, truncateString(r.Title, SearchTitleMaxLen), r.ID)
		if r.Figures > 0 {
			fmt.Printf("          %d figures, %d without caption\n", r.Figures, r.CaptionFailures)
		}
		if r.Supersedes != "" {
			fmt.Printf("          replaces %s\n", r.Supersedes)
		}
	case "duplicate":
		fmt.Printf("duplicate %s\n          already stored as %s\n", r.Path, r.ExistingID)
	default:
		fmt.Printf("failed    %s\n          %s\n", r.Path, r.Error)
	}
}

// collectPDFs expands directories into the PDFs below them. Explicit file
// arguments are kept whatever their extension.
func collectPDFs(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".pdf") && !strings.HasPrefix(d.Name(), ".") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return paths, nil
}

func validatePolicyFlag(policy string) error {
	switch dedup.Policy(policy) {
	case dedup.PolicyReject, dedup.PolicyReplace:
		return nil
	}
	return fmt.Errorf("invalid duplicate policy %q (valid: %s, %s)", policy, dedup.PolicyReject, dedup.PolicyReplace)
}

// ingestOne runs a single file and reports it, used by watch.
func ingestOne(ctx context.Context, pl *ingest.Pipeline, path string) IngestResult {
	out, err := pl.IngestFile(ctx, path)
	return ingestResult(ingest.FileResult{Path: path, Outcome: out, Err: err})
}
