package uow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// SQLFactory opens units of work on a dedicated pooled connection each.
type SQLFactory struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	opts  *sql.TxOptions
}

func NewSQLFactory(db *sql.DB, repos repomanager.RepositoryManager) *SQLFactory {
	return &SQLFactory{db: db, repos: repos}
}

func (f *SQLFactory) Begin(ctx context.Context) (UnitOfWork, error) {
	s, err := dbx.Open(ctx, f.db, f.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStoreFailure, err)
	}

	return &sqlUnit{
		session: s,
		users:   f.repos.Users(s.Tx()),
	}, nil
}

type sqlUnit struct {
	session *dbx.Session
	users   users.Repository
}

func (u *sqlUnit) Users() users.Repository {
	if u.session.State() == StateClosed {
		panic(closedPanic)
	}
	return u.users
}

func (u *sqlUnit) Commit() error {
	if err := u.session.Commit(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStoreFailure, err)
	}
	return nil
}

func (u *sqlUnit) Rollback() error {
	if err := u.session.Rollback(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStoreFailure, err)
	}
	return nil
}

func (u *sqlUnit) Close() error {
	if err := u.session.Close(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStoreFailure, err)
	}
	return nil
}

func (u *sqlUnit) State() State {
	return u.session.State()
}
