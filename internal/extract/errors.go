package extract

import (
	"errors"
	"fmt"
)

// Sentinel errors for extraction failures.
var (
	// ErrEmptyInput indicates the paper text was blank.
	ErrEmptyInput = errors.New("paper text is empty")

	// ErrEmptyOutput indicates a model call returned no text.
	ErrEmptyOutput = errors.New("model returned empty output")

	// ErrLowQuality indicates the record parsed but carries no usable physics.
	ErrLowQuality = errors.New("extracted record failed the quality gate")
)

// Error is returned when a stage exhausts its attempts or the record is
// rejected. Raw holds the last model output seen by the failing stage.
type Error struct {
	Stage    Stage
	Attempts int
	Raw      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed at %s stage after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsExtractionError reports whether err is an extraction failure.
func IsExtractionError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// FailedStage returns the stage that failed, or "" if err is not an *Error.
func FailedStage(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
