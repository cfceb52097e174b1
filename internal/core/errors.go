package core

import (
	"errors"
	"fmt"
)

// Failure modes of a simulation run.
var (
	// ErrInvalidArgument indicates bad construction parameters or a
	// negative step count. Raised before any computation starts.
	ErrInvalidArgument = errors.New("bedform: invalid argument")

	// ErrNumericInstability indicates a cell became NaN or infinite.
	// The run aborts rather than propagating corrupted state.
	ErrNumericInstability = errors.New("bedform: non-finite cell value")
)

// StepError reports which step of a run failed.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
