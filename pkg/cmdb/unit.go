package cmdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// unit groups the writes of one engine operation. On a types.Transactor
// the writes share a transaction; on any other store each write registers
// an undo step that runs, newest first, if the operation fails.
type unit struct {
	store         types.Store
	transactional bool
	undo          []func(context.Context) error
}

// onFailure registers an undo step. It is a no-op inside a transaction.
func (u *unit) onFailure(step func(context.Context) error) {
	if !u.transactional {
		u.undo = append(u.undo, step)
	}
}

func (u *unit) compensate(ctx context.Context) error {
	var errs []error
	for i := len(u.undo) - 1; i >= 0; i-- {
		if err := u.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// inUnit runs fn as one logical unit of work.
func (e *Engine) inUnit(ctx context.Context, fn func(u *unit) error) error {
	if tx, ok := e.store.(types.Transactor); ok {
		return tx.WithTx(ctx, func(s types.Store) error {
			return fn(&unit{store: s, transactional: true})
		})
	}

	u := &unit{store: e.store}
	err := fn(u)
	if err == nil || len(u.undo) == 0 {
		return err
	}
	if cerr := u.compensate(context.WithoutCancel(ctx)); cerr != nil {
		e.logger.Error("compensation failed", "error", cerr)
		return errors.Join(err, fmt.Errorf("compensating: %w", cerr))
	}
	e.logger.Warn("operation rolled back by compensation", "steps", len(u.undo), "error", err)
	return err
}
