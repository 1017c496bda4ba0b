package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidPreset     = errors.New("invalid preset")
	ErrNotFound          = errors.New("not found")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrStageTimeout      = errors.New("stage timeout")
	ErrCancelled         = errors.New("cancelled")
	ErrQueueClosed       = errors.New("queue closed")
)

// StageError reports a failure inside a named pipeline stage. It wraps the
// collaborator-level cause so callers can match on it with errors.Is/As.
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
