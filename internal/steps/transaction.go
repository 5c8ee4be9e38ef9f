package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoro11031/ror/internal/ui"
)

// action is one step of a procedure. undo reverts a completed do and may be
// nil when nothing needs reverting.
type action struct {
	name string
	do   func(ctx context.Context) error
	undo func() error
}

// transaction runs actions in order. When one fails, the completed ones are
// undone in reverse order.
type transaction struct {
	ui     *ui.UI
	logger *slog.Logger
	done   []action
}

func newTransaction(u *ui.UI, logger *slog.Logger) *transaction {
	return &transaction{ui: u, logger: logger}
}

func (t *transaction) run(ctx context.Context, actions ...action) error {
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return t.abort(a.name, err)
		}

		t.logger.Debug("step", "name", a.name)
		if err := a.do(ctx); err != nil {
			return t.abort(a.name, err)
		}
		t.done = append(t.done, a)
	}
	return nil
}

// abort undoes the completed actions in reverse order. It stops at the
// first undo that fails so earlier actions, such as the backups a failed
// restore still needs, stay in place.
func (t *transaction) abort(name string, cause error) error {
	stepErr := fmt.Errorf("%s: %w", name, cause)
	done := t.done
	t.done = nil

	for i := len(done) - 1; i >= 0; i-- {
		a := done[i]
		if a.undo == nil {
			continue
		}
		if err := a.undo(); err != nil {
			pending := pendingUndo(done[:i+1])
			t.logger.Error("rollback stopped", "step", a.name, "err", err, "pending", pending)
			t.ui.Errorf("Rollback stopped at %q, undo by hand: %s", a.name, strings.Join(pending, ", "))
			return &RollbackError{
				Cause:    stepErr,
				Rollback: fmt.Errorf("undo %s: %w", a.name, err),
				Pending:  pending,
			}
		}
		t.ui.Warningf("Rolled back: %s", a.name)
	}
	return stepErr
}

// pendingUndo lists the reversible actions in done, most recent first.
func pendingUndo(done []action) []string {
	var names []string
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].undo != nil {
			names = append(names, done[i].name)
		}
	}
	return names
}
