package ingest

import (
	"errors"
	"fmt"
)

// Op names the write step that failed.
type Op string

const (
	OpLock          Op = "lock"
	OpIndexRefresh  Op = "index-refresh"
	OpStorePending  Op = "store-pending"
	OpEmbed         Op = "embed"
	OpIndexAppend   Op = "index-append"
	OpStoreActivate Op = "store-activate"
)

// WriteError is a failure while committing a paper. The paper may be left
// pending; a recovery pass or a retry of the whole ingestion completes it.
type WriteError struct {
	Op      Op
	PaperID string
	Err     error
}

func (e *WriteError) Error() string {
	if e.PaperID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed for paper %s: %v", e.Op, e.PaperID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-running the ingestion may succeed. The dedup
// gate makes retries idempotent, so every write failure qualifies.
func (e *WriteError) Retryable() bool {
	return true
}

// IsWriteError reports whether err is a *WriteError.
func IsWriteError(err error) bool {
	var w *WriteError
	return errors.As(err, &w)
}
