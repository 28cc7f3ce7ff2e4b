package main

import (
	"errors"

	"github.com/plasmarag/plasmarag/internal/config"
	"github.com/plasmarag/plasmarag/internal/dedup"
	"github.com/plasmarag/plasmarag/internal/extract"
	"github.com/plasmarag/plasmarag/internal/ingest"
	"github.com/plasmarag/plasmarag/internal/llm"
	"github.com/plasmarag/plasmarag/internal/recommend"
	"github.com/plasmarag/plasmarag/internal/storage"
	"github.com/plasmarag/plasmarag/internal/vindex"
)

// Exit codes
const (
	ExitSuccess         = 0 // Success
	ExitError           = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError     = 2 // Configuration error (no knowledge base, invalid config, index model mismatch)
	ExitDataError       = 3 // Data error (malformed input, paper not found)
	ExitDuplicate       = 4 // Paper already in the knowledge base
	ExitExtractionError = 5 // Structured extraction failed
	ExitWriteError      = 6 // Store or index write failed; run 'prag recover'
	ExitAuthError       = 7 // Missing or invalid model service key
	ExitSynthesisError  = 8 // Recommendation synthesis failed
)

// exitCodeFor maps an operation error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrAPIKeyNotConfigured), llm.IsAuthError(err):
		return ExitAuthError
	case dedup.IsDuplicate(err):
		return ExitDuplicate
	case extract.IsExtractionError(err):
		return ExitExtractionError
	case ingest.IsWriteError(err):
		return ExitWriteError
	case errors.Is(err, vindex.ErrModelMismatch):
		return ExitConfigError
	case errors.Is(err, storage.ErrNotFound):
		return ExitDataError
	}
	var synthErr *recommend.Error
	if errors.As(err, &synthErr) {
		return ExitSynthesisError
	}
	return ExitError
}
