// Package sqlitedb opens an in-memory SQLite store with the order schema for tests.
package sqlitedb

import (
	"context"
	"database/sql"
	"testing"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/schema"
	"ordergraph/internal/testutil"

	_ "modernc.org/sqlite"
)

// TestDB is an isolated in-memory store.
type TestDB struct {
	DB       *sql.DB
	Executor *dbexec.StandardExecutor
}

// New opens an empty store with the schema applied. It is closed on test cleanup.
func New(t *testing.T) *TestDB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	// Every connection to :memory: is a separate database; keep exactly one.
	db.SetMaxOpenConns(1)

	if err := schema.Apply(context.Background(), db, schema.DialectSQLite); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close sqlite database: %v", err)
		}
	})

	return &TestDB{DB: db, Executor: dbexec.NewStandardExecutor(db)}
}

// NewWithFixtures opens a store loaded with testutil.FixtureSQL.
func NewWithFixtures(t *testing.T) *TestDB {
	t.Helper()

	tdb := New(t)
	tdb.Exec(t, testutil.FixtureSQL)
	return tdb
}

// Exec runs a script against the store.
func (tdb *TestDB) Exec(t *testing.T, script string) {
	t.Helper()

	if err := schema.ExecScript(context.Background(), tdb.DB, script); err != nil {
		t.Fatalf("Failed to execute script: %v", err)
	}
}
