package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plasmarag/plasmarag/internal/ingest"
	"github.com/plasmarag/plasmarag/internal/storage"
)

func init() {
	rootCmd.AddCommand(retractCmd)
}

var retractCmd = &cobra.Command{
	Use:   "retract <id>",
	Short: "Soft-delete a paper",
	Long: `Retract a paper and its force models.

Retracted papers no longer appear in search or recommendations and free
their title for a new ingestion. Their vectors stay in the indices.

Example:
  prag retract 3f1c2a9e-0b7d-4c55-9a51-6f0e2d1b8c44`,
	Args: cobra.ExactArgs(1),
	RunE: runRetract,
}

func runRetract(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	// Retraction changes title liveness, so it takes the metadata lock.
	lockCtx, lockCancel := context.WithTimeout(ctx, a.cfg.LockTimeout())
	defer lockCancel()
	release, err := a.locks.Acquire(lockCtx, ingest.LockMetadata)
	if err != nil {
		exitWithError(ExitError, "acquiring lock: %v", err)
	}
	defer release()

	if err := a.db.Retract(ctx, args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			exitWithError(ExitDataError, "no active or pending paper with id %s", args[0])
		}
		exitWithError(ExitError, "retracting: %v", err)
	}

	if humanOutput {
		fmt.Printf("Retracted %s\n", args[0])
	} else {
		outputJSON(StatusResponse{Status: "retracted", ID: args[0]})
	}
	return nil
}
