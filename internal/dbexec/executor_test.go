package dbexec

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPinsConnection(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 2")).WillReturnRows(sqlmock.NewRows([]string{"2"}).AddRow(2))

	session, err := NewStandardExecutor(db).Session(context.Background(), SessionOptions{})
	require.NoError(t, err)

	for _, q := range []string{"SELECT 1", "SELECT 2"} {
		rows, err := session.QueryContext(context.Background(), q)
		require.NoError(t, err)
		require.True(t, rows.Next())
		require.NoError(t, rows.Close())
	}

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionSnapshotRollsBackOnClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	session, err := NewStandardExecutor(db).Session(context.Background(), SessionOptions{Snapshot: true})
	require.NoError(t, err)

	rows, err := session.QueryContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	require.NoError(t, session.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginTxCommit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `item` SET `stock_quantity` = ?")).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := NewStandardExecutor(db).BeginTx(context.Background())
	require.NoError(t, err)
	_, err = tx.ExecContext(context.Background(), "UPDATE `item` SET `stock_quantity` = ?", 3)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilDatabase(t *testing.T) {
	exec := NewStandardExecutor(nil)
	_, err := exec.QueryContext(context.Background(), "SELECT 1")
	assert.Error(t, err)
	_, err = exec.Session(context.Background(), SessionOptions{})
	assert.Error(t, err)
	_, err = exec.BeginTx(context.Background())
	assert.Error(t, err)
}
