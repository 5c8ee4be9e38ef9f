package steps

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyCreated is returned by create when the overlay setup exists.
	ErrAlreadyCreated = errors.New("read-only root already created")

	// ErrNotCreated is returned when an operation needs a prior create.
	ErrNotCreated = errors.New("read-only root not created")

	// ErrNotEnabled is returned by disable when read-only mode is off.
	ErrNotEnabled = errors.New("read-only root not enabled")

	// ErrStillEnabled is returned by destroy while read-only mode is on.
	ErrStillEnabled = errors.New("read-only root still enabled, run disable first")

	// ErrPatchNotApplied indicates a literal replacement found no match.
	ErrPatchNotApplied = errors.New("patch target not found")

	// ErrImageIncomplete indicates the regenerated boot image lacks an
	// overlay component.
	ErrImageIncomplete = errors.New("boot image incomplete")
)

// RollbackError reports a failed step whose rollback also failed. Unwrap
// returns the step failure.
type RollbackError struct {
	Cause    error
	Rollback error
	// Pending names the steps left in place, most recent first.
	Pending []string
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback incomplete: %v; still to undo: %s)",
		e.Cause, e.Rollback, strings.Join(e.Pending, ", "))
}

func (e *RollbackError) Unwrap() error {
	return e.Cause
}
