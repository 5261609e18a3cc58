package synth

import (
	"errors"
	"fmt"
)

// ErrEngineNotReady reports that the engine handle was never initialized.
var ErrEngineNotReady = errors.New("synthesis engine not ready")

// ErrEmptyOutput reports that the engine yielded zero chunks for non-empty
// input. An empty WAV is never a valid success response.
var ErrEmptyOutput = errors.New("engine produced no audio")

// ValidationError names the request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}
