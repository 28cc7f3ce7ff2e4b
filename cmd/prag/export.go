package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/export"
	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/storage"
)

var (
	exportFormat string
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Output format: jsonl or bibtex")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [id]...",
	Short: "Export papers as JSONL records or BibTeX",
	Long: `Export active papers, or the given ids, with every extracted field.

JSONL output can be loaded into another knowledge base with 'prag import',
for example to rebuild the indices with a different embedding model.

Examples:
  prag export -o papers.jsonl
  prag export --format bibtex 3f1c2a9e-... > refs.bib`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "jsonl" && exportFormat != "bibtex" {
		exitWithError(ExitError, "invalid format %q (valid: jsonl, bibtex)", exportFormat)
	}

	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	papers, err := loadFullPapers(ctx, a.db, args)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	switch {
	case exportFormat == "bibtex" && exportOutput != "":
		err = os.WriteFile(exportOutput, []byte(export.ToBibTeXList(papers)), 0644)
	case exportFormat == "bibtex":
		_, err = fmt.Fprint(os.Stdout, export.ToBibTeXList(papers))
	case exportOutput != "":
		err = export.WriteJSONL(exportOutput, papers)
	default:
		err = export.EncodeJSONL(os.Stdout, papers)
	}
	if err != nil {
		exitWithError(ExitError, "writing export: %v", err)
	}

	if exportOutput != "" {
		if humanOutput {
			outputHuman("Exported %d papers to %s\n", len(papers), exportOutput)
		} else {
			outputJSON(StatusResponse{Status: fmt.Sprintf("exported %d papers", len(papers)), Path: exportOutput})
		}
	}
	return nil
}

// loadFullPapers returns the given papers, or every active paper, with
// their children.
func loadFullPapers(ctx context.Context, db *storage.DB, ids []string) ([]paper.Paper, error) {
	if len(ids) == 0 {
		list, err := db.ListPapers(ctx, storage.ListOptions{Status: paper.StatusActive})
		if err != nil {
			return nil, fmt.Errorf("listing papers: %w", err)
		}
		for _, p := range list {
			ids = append(ids, p.ID)
		}
	}

	papers := make([]paper.Paper, 0, len(ids))
	for _, id := range ids {
		p, err := db.GetPaper(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", id, err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		papers = append(papers, *p)
	}
	return papers, nil
}
