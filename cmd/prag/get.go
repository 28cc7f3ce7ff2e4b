package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a single paper by ID",
	Long: `Get a paper with its parameters, force models and figures.

Example:
  prag get 3f1c2a9e-0b7d-4c55-9a51-6f0e2d1b8c44`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	p, err := a.db.GetPaper(ctx, args[0])
	if err != nil {
		exitWithError(ExitError, "getting paper: %v", err)
	}
	if p == nil {
		exitWithError(ExitDataError, "paper not found: %s", args[0])
	}

	if humanOutput {
		printPaperDetail(p)
	} else {
		outputJSON(p)
	}
	return nil
}
