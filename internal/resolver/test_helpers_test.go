package resolver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sync"
	"testing"

	"ordergraph/internal/dbexec"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return errors.New("scan called without advancing rows")
	}
	row := r.rows[r.idx-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan row has %d values, dest has %d", len(row), len(dest))
	}
	for i, value := range row {
		if err := assignScanValue(dest[i], value); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) Close() error {
	return nil
}

func assignScanValue(dest any, value any) error {
	switch d := dest.(type) {
	case *interface{}:
		*d = value
		return nil
	default:
		rv := reflect.ValueOf(dest)
		if rv.Kind() != reflect.Ptr {
			return fmt.Errorf("scan dest must be pointer, got %T", dest)
		}
		if value == nil {
			rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
			return nil
		}
		vv := reflect.ValueOf(value)
		if vv.Type().AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(vv)
			return nil
		}
		if vv.Type().ConvertibleTo(rv.Elem().Type()) {
			rv.Elem().Set(vv.Convert(rv.Elem().Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %T", value, dest)
	}
}

// fakeExecutor replays canned responses in call order and records every query.
type fakeExecutor struct {
	mu        sync.Mutex
	responses [][][]any
	errAt     map[int]error
	calls     int
	queries   []string
	args      [][]any
	sessions  int
	closed    int
}

func (e *fakeExecutor) QueryContext(_ context.Context, query string, args ...any) (dbexec.Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	e.queries = append(e.queries, query)
	e.args = append(e.args, args)
	idx := e.calls - 1
	if err, ok := e.errAt[idx]; ok {
		return nil, err
	}
	if idx >= len(e.responses) {
		return &fakeRows{}, nil
	}
	return &fakeRows{rows: e.responses[idx]}, nil
}

func (e *fakeExecutor) ExecContext(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return nil, nil
}

func (e *fakeExecutor) BeginTx(_ context.Context) (dbexec.TxExecutor, error) {
	return nil, errors.New("not implemented")
}

func (e *fakeExecutor) Session(_ context.Context, _ dbexec.SessionOptions) (dbexec.Session, error) {
	e.mu.Lock()
	e.sessions++
	e.mu.Unlock()
	return &fakeSession{executor: e}, nil
}

type fakeSession struct {
	executor *fakeExecutor
}

func (s *fakeSession) QueryContext(ctx context.Context, query string, args ...any) (dbexec.Rows, error) {
	return s.executor.QueryContext(ctx, query, args...)
}

func (s *fakeSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.executor.ExecContext(ctx, query, args...)
}

func (s *fakeSession) Close() error {
	s.executor.mu.Lock()
	s.executor.closed++
	s.executor.mu.Unlock()
	return nil
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock
}

func expectQuery(t *testing.T, mock sqlmock.Sqlmock, sql string, args []interface{}, rows *sqlmock.Rows) {
	t.Helper()

	query := regexp.QuoteMeta(sql)
	expectation := mock.ExpectQuery(query)
	if len(args) > 0 {
		expectation = expectation.WithArgs(toDriverValues(args)...)
	}
	expectation.WillReturnRows(rows)
}

func toDriverValues(args []interface{}) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return values
}
