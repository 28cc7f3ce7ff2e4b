package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/paper"
	"github.com/plasmarag/plasmarag/internal/storage"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base statistics",
	Long: `Show paper counts by status, extracted record counts and vector index sizes.

Index sizes include vectors of retracted and superseded papers, which are
kept on disk and masked at query time.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// StatusReport is the response of the status command.
type StatusReport struct {
	Root     string        `json:"root"`
	Store    storage.Stats `json:"store"`
	Indices  vindex.Stats  `json:"indices"`
	Policy   string        `json:"duplicate_policy"`
	Embedder string        `json:"embedding_provider"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	stats, err := a.db.Stats(ctx)
	if err != nil {
		exitWithError(ExitError, "reading store statistics: %v", err)
	}

	report := StatusReport{
		Root:     a.root,
		Store:    stats,
		Indices:  a.set.Stats(),
		Policy:   a.cfg.DuplicatePolicy,
		Embedder: a.cfg.EmbeddingProvider,
	}

	if humanOutput {
		fmt.Printf("Knowledge base: %s\n\n", report.Root)
		fmt.Println("Papers:")
		for _, s := range []paper.Status{paper.StatusActive, paper.StatusPending, paper.StatusRetracted, paper.StatusSuperseded} {
			fmt.Printf("  %-11s %d\n", s, stats.Papers[s])
		}
		fmt.Printf("\nForce models: %d\n", stats.ForceModels)
		fmt.Printf("Parameters:   %d\n", stats.Parameters)
		fmt.Printf("Figures:      %d\n", stats.Figures)
		fmt.Printf("\nIndices (%s/%s, %d dims):\n", report.Embedder, report.Indices.ModelName, report.Indices.Dimensions)
		fmt.Printf("  papers  %d vectors\n", report.Indices.Papers)
		fmt.Printf("  forces  %d vectors\n", report.Indices.Forces)
		if n := stats.Papers[paper.StatusPending]; n > 0 {
			fmt.Printf("\n%d pending papers; run 'prag recover'\n", n)
		}
	} else {
		outputJSON(report)
	}
	return nil
}
