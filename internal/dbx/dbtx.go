// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and Session, a transaction pinned to one dedicated connection.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCommitted
	StateRolledBack
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotActive is returned by Commit when the session has no open transaction.
var ErrNotActive = errors.New("transaction is not active")

// Session owns one pooled connection and one transaction on it.
// It is not safe for concurrent use; one logical operation owns it.
//
// Typical use:
//
//	s, err := dbx.Open(ctx, db, nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	if _, err := s.Tx().ExecContext(ctx, "UPDATE ..."); err != nil {
//	    return err
//	}
//	return s.Commit()
type Session struct {
	conn  *sql.Conn
	tx    *sql.Tx
	state State
}

// Open checks a connection out of db and begins a transaction on it. The
// connection goes back to the pool if the transaction cannot be started.
func Open(ctx context.Context, db *sql.DB, opts *sql.TxOptions) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &Session{conn: conn, tx: tx, state: StateActive}, nil
}

// Tx returns the transactional handle repositories bind to.
func (s *Session) Tx() DBTX {
	return s.tx
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	return s.state
}

// Commit makes the transaction's writes durable.
func (s *Session) Commit() error {
	if s.state != StateActive {
		return fmt.Errorf("commit in state %s: %w", s.state, ErrNotActive)
	}
	if err := s.tx.Commit(); err != nil {
		s.state = StateRolledBack
		return fmt.Errorf("commit: %w", err)
	}
	s.state = StateCommitted
	return nil
}

// Rollback discards uncommitted writes. It is a no-op once the transaction
// has finished, so it is always safe to call on the way out.
func (s *Session) Rollback() error {
	if s.state != StateActive {
		return nil
	}
	s.state = StateRolledBack
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back anything uncommitted and returns the connection to the
// pool. Calling Close more than once is harmless.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	rbErr := s.Rollback()
	connErr := s.conn.Close()
	s.state = StateClosed
	if connErr != nil && !errors.Is(connErr, sql.ErrConnDone) {
		return errors.Join(rbErr, fmt.Errorf("release connection: %w", connErr))
	}
	return rbErr
}
