package dynamo

import (
	"errors"
	"fmt"
)

// Error kinds for a design run. Every failure is one of these.
var (
	// ErrConfiguration indicates a physical parameter or setting outside its valid range.
	ErrConfiguration = errors.New("configuration error")

	// ErrModel indicates a singular or undefined dynamics block.
	ErrModel = errors.New("model error")

	// ErrSolver indicates a Riccati equation without a stabilizing or detecting solution.
	ErrSolver = errors.New("solver error")

	// ErrExport indicates a bad path or identifier, or an unwritable destination.
	ErrExport = errors.New("export error")
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageConfig      Stage = "config"
	StageModel       Stage = "model"
	StageDiscretize  Stage = "discretize"
	StageLQR         Stage = "lqr"
	StageFeedforward Stage = "feedforward"
	StageKalman      Stage = "kalman"
	StageExport      Stage = "export"
	StageSimulate    Stage = "simulate"
	StageRender      Stage = "render"
)

// StageError wraps an error with the stage it came from and its kind.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

// Fail builds a StageError. Use it at the point a precondition is detected.
func Fail(stage Stage, kind error, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StageOf reports the stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
