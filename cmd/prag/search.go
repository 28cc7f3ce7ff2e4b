package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/paper"
)

var (
	searchTopK    int
	searchKeyword bool
)

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", DefaultSearchLimit, "Results per index")
	searchCmd.Flags().BoolVar(&searchKeyword, "keyword", false, "Full-text search over paper records instead of vectors")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find papers and force models similar to a query",
	Long: `Search both vector indices with one embedded query.

Returns the closest active papers and the closest active force models.
Distances are squared L2; smaller is closer.

Examples:
  prag search "chain structure formation"
  prag search "Yukawa screening with ion wake" -k 10
  prag search --keyword "dust acoustic"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// PaperSearchResult is a paper in search results.
type PaperSearchResult struct {
	PaperSummary
	Distance *float32 `json:"distance,omitempty"`
}

// ForceSearchResult is a force model in search results.
type ForceSearchResult struct {
	ID       string  `json:"id"`
	PaperID  string  `json:"paper_id"`
	Name     string  `json:"name"`
	Formula  string  `json:"formula"`
	Meaning  string  `json:"meaning,omitempty"`
	Distance float32 `json:"distance"`
}

// SearchResponse is the response of the search command.
type SearchResponse struct {
	Query  string              `json:"query"`
	Papers []PaperSearchResult `json:"papers"`
	Forces []ForceSearchResult `json:"forces"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(a.cfg.RequestTimeout())
	defer cancel()

	resp := SearchResponse{
		Query:  args[0],
		Papers: []PaperSearchResult{},
		Forces: []ForceSearchResult{},
	}

	if searchKeyword {
		papers, err := a.db.KeywordSearch(ctx, args[0], searchTopK)
		if err != nil {
			exitWithErr(err, "searching")
		}
		for _, p := range papers {
			resp.Papers = append(resp.Papers, PaperSearchResult{PaperSummary: summarize(p)})
		}
	} else {
		a.mustValidateEmbedder()
		svc, err := a.retrieval()
		if err != nil {
			exitWithErr(err, "opening retrieval")
		}
		res, err := svc.Search(ctx, args[0], searchTopK)
		if err != nil {
			exitWithErr(err, "searching")
		}
		for _, h := range res.Papers {
			d := h.Distance
			resp.Papers = append(resp.Papers, PaperSearchResult{PaperSummary: summarize(*h.Paper), Distance: &d})
		}
		for _, h := range res.Forces {
			resp.Forces = append(resp.Forces, forceResult(h.ForceModel, h.Distance))
		}
	}

	if humanOutput {
		printSearchHuman(resp)
	} else {
		outputJSON(resp)
	}
	return nil
}

func forceResult(f *paper.ForceModel, distance float32) ForceSearchResult {
	return ForceSearchResult{
		ID:       f.ID,
		PaperID:  f.PaperID,
		Name:     f.Name,
		Formula:  f.Formula,
		Meaning:  f.Meaning,
		Distance: distance,
	}
}

func printSearchHuman(resp SearchResponse) {
	if len(resp.Papers) == 0 && len(resp.Forces) == 0 {
		fmt.Println("No results found")
		return
	}

	if len(resp.Papers) > 0 {
		fmt.Printf("Papers (%d):\n\n", len(resp.Papers))
		for i, r := range resp.Papers {
			if r.Distance != nil {
				fmt.Printf("%d. [%.3f] %s\n", i+1, *r.Distance, truncateString(r.Title, SearchTitleMaxLen))
			} else {
				fmt.Printf("%d. %s\n", i+1, truncateString(r.Title, SearchTitleMaxLen))
			}
			fmt.Printf("   %s\n\n", r.ID)
		}
	}

	if len(resp.Forces) > 0 {
		fmt.Printf("Force models (%d):\n\n", len(resp.Forces))
		for i, f := range resp.Forces {
			fmt.Printf("%d. [%.3f] %s\n", i+1, f.Distance, f.Name)
			fmt.Printf("   %s\n", f.Formula)
			fmt.Printf("   from %s\n\n", f.PaperID)
		}
	}
}
