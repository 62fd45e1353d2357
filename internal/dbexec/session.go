package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// SessionOptions controls how a session reads.
type SessionOptions struct {
	// Snapshot wraps the session in a read-only repeatable-read transaction so
	// every query observes the same snapshot.
	Snapshot bool
}

// Session is a unit of work bound to a single store connection.
type Session interface {
	Querier
	Execer
	Close() error
}

// Session pins one pooled connection until Close is called.
func (e *StandardExecutor) Session(ctx context.Context, opts SessionOptions) (Session, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	s := &connSession{conn: conn}
	if opts.Snapshot {
		tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
		s.tx = tx
	}
	return s, nil
}

type connSession struct {
	mu     sync.Mutex
	conn   *sql.Conn
	tx     *sql.Tx
	closed bool
}

func (s *connSession) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *connSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.conn.ExecContext(ctx, query, args...)
}

// Close ends the snapshot, if any, and returns the connection to the pool.
// It is safe to call more than once.
func (s *connSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var txErr error
	if s.tx != nil {
		// Read-only; nothing to commit.
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			txErr = err
		}
	}
	return errors.Join(txErr, s.conn.Close())
}

// TxSession exposes a transaction as a Session so read paths join the caller's
// transaction. Close is a no-op; the transaction owner commits or rolls back.
func TxSession(tx TxExecutor) Session {
	return txSession{tx: tx}
}

type txSession struct {
	tx TxExecutor
}

func (s txSession) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

func (s txSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s txSession) Close() error {
	return nil
}
