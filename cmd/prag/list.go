package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/storage"
)

var (
	listLimit  int
	listStatus string
	listForces bool
)

// ForceSummary is one force model in list output.
type ForceSummary struct {
	ID      string `json:"id"`
	PaperID string `json:"paper_id"`
	Name    string `json:"name"`
	Formula string `json:"formula"`
	Meaning string `json:"meaning,omitempty"`
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", DefaultListLimit, "Maximum papers to list (0 for all)")
	listCmd.Flags().StringVar(&listStatus, "status", string(paper.StatusActive), "Status to list: active, pending, retracted, superseded")
	listCmd.Flags().BoolVar(&listForces, "forces", false, "List force models instead of papers")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers in the knowledge base",
	Long: `List papers, newest first.

Examples:
  prag list
  prag list --status pending
  prag list --forces
  prag list --limit 0 --human`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	status, err := parseStatus(listStatus)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	if listForces {
		return listForceModels(ctx, a, status)
	}

	papers, err := a.db.ListPapers(ctx, storage.ListOptions{Status: status, Limit: listLimit})
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	summaries := make([]PaperSummary, 0, len(papers))
	for _, p := range papers {
		summaries = append(summaries, summarize(p))
	}

	if humanOutput {
		if len(summaries) == 0 {
			fmt.Println("No papers found")
			return nil
		}
		for i, s := range summaries {
			printPaperSummary(i+1, s)
		}
	} else {
		outputJSON(summaries)
	}
	return nil
}

func listForceModels(ctx context.Context, a *app, status paper.Status) error {
	forces, err := a.db.ListForceModels(ctx, status, listLimit)
	if err != nil {
		exitWithError(ExitError, "listing force models: %v", err)
	}

	summaries := make([]ForceSummary, 0, len(forces))
	for _, f := range forces {
		summaries = append(summaries, ForceSummary{ID: f.ID, PaperID: f.PaperID, Name: f.Name, Formula: f.Formula, Meaning: f.Meaning})
	}

	if !humanOutput {
		return outputJSON(summaries)
	}
	if len(summaries) == 0 {
		fmt.Println("No force models found")
		return nil
	}
	for i, f := range summaries {
		fmt.Printf("%d. %s\n", i+1, f.Name)
		fmt.Printf("   %s\n", f.Formula)
		if f.Meaning != "" {
			fmt.Printf("   %s\n", truncateString(f.Meaning, 100))
		}
		fmt.Printf("   from %s\n\n", f.PaperID)
	}
	return nil
}

func parseStatus(s string) (paper.Status, error) {
	switch st := paper.Status(s); st {
	case paper.StatusActive, paper.StatusPending, paper.StatusRetracted, paper.StatusSuperseded:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}
