// Package uow scopes repository access to one transaction per logical
// operation. A UnitOfWork is owned by a single caller, is never shared
// between goroutines, and makes writes durable only on an explicit Commit.
package uow

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// State is the lifecycle position of a unit of work:
// Active → Committed | RolledBack → Closed.
type State = dbx.State

const (
	StateActive     = dbx.StateActive
	StateCommitted  = dbx.StateCommitted
	StateRolledBack = dbx.StateRolledBack
	StateClosed     = dbx.StateClosed
)

// UnitOfWork exposes repositories bound to one open transaction.
type UnitOfWork interface {
	// Users returns the user repository bound to this scope. Calling it
	// after Close is a programming error and panics.
	Users() users.Repository

	// Commit makes staged writes durable.
	Commit() error

	// Rollback discards staged writes. It is a no-op once the scope has
	// committed or rolled back.
	Rollback() error

	// Close rolls back anything uncommitted and releases the underlying
	// resources. It is idempotent.
	Close() error

	State() State
}

// Factory opens units of work.
type Factory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Run opens a unit of work, hands it to fn and always closes it, including
// when fn panics. Writes survive only if fn called Commit.
func Run(ctx context.Context, f Factory, fn func(ctx context.Context, u UnitOfWork) error) (err error) {
	u, err := f.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := u.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, u)
}

const closedPanic = "uow: repository requested from a closed unit of work"
