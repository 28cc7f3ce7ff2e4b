package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/ingest"
)

var recoverPurge bool

func init() {
	recoverCmd.Flags().BoolVar(&recoverPurge, "purge", false, "Delete pending papers instead of completing them")
	rootCmd.AddCommand(recoverCmd)
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Complete or purge commits left pending by interrupted writers",
	Long: `Find papers stuck in the pending state after a crash or failed write.

By default each one is re-embedded where its vectors are missing and made
active. With --purge they are deleted instead, restoring any paper they were
replacing.

Examples:
  prag recover
  prag recover --purge`,
	Args: cobra.NoArgs,
	RunE: runRecover,
}

func runRecover(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	w := a.writer(a.dedup(""))
	report, err := w.Recover(ctx, ingest.RecoverOptions{Purge: recoverPurge})
	if err != nil {
		exitWithErr(err, "recovering")
	}

	if humanOutput {
		printRecoveryHuman(report)
	} else {
		outputJSON(report)
	}

	// Unrecovered papers stay pending and are retried on the next pass
	if len(report.Failed) > 0 {
		os.Exit(ExitWriteError)
	}
	return nil
}

func printRecoveryHuman(r *ingest.RecoveryReport) {
	if r.Pending == 0 {
		fmt.Println("No pending papers")
		return
	}
	fmt.Printf("Pending:   %d\n", r.Pending)
	if len(r.Activated) > 0 {
		fmt.Printf("Activated: %d (%d vectors appended)\n", len(r.Activated), r.VectorsAppended)
	}
	if len(r.Purged) > 0 {
		fmt.Printf("Purged:    %d\n", len(r.Purged))
	}
	if len(r.Failed) > 0 {
		fmt.Printf("Failed:    %d\n", len(r.Failed))
		ids := make([]string, 0, len(r.Failed))
		for id := range r.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s: %s\n", id, r.Failed[id])
		}
	}
}
