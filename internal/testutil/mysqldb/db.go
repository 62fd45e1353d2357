// Package mysqldb provisions an isolated MySQL-compatible database for integration tests.
// Tests are skipped unless ORDERGRAPH_TEST_MYSQL_HOST, _USER and _PASSWORD are set.
package mysqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/schema"
	"ordergraph/internal/testutil"

	"github.com/go-sql-driver/mysql"
)

// TestDB represents a database created for one test and dropped afterwards.
type TestDB struct {
	DB           *sql.DB
	Executor     *dbexec.StandardExecutor
	DatabaseName string
}

// Config holds connection information read from the environment.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	TLSMode  string
}

// New creates an isolated database with the order schema applied.
func New(t *testing.T) *TestDB {
	t.Helper()

	cfg := getTestConfig(t)
	dbName := fmt.Sprintf("test_%s_%d", sanitizeName(t.Name()), time.Now().UnixMilli())
	if !isValidDatabaseName(dbName) {
		t.Fatalf("Invalid database name generated: %s", dbName)
	}

	bootstrap, err := sql.Open("mysql", buildDSN(cfg, ""))
	if err != nil {
		t.Fatalf("Failed to connect to MySQL: %v", err)
	}
	// Safe to format: dbName is validated above.
	if _, err := bootstrap.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		_ = bootstrap.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}
	if err := bootstrap.Close(); err != nil {
		t.Logf("Warning: failed to close bootstrap connection: %v", err)
	}

	db, err := sql.Open("mysql", buildDSN(cfg, dbName))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	configureTestPool(db)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	tdb := &TestDB{DB: db, Executor: dbexec.NewStandardExecutor(db), DatabaseName: dbName}
	t.Cleanup(func() {
		tdb.Teardown(t)
	})

	if err := schema.Apply(context.Background(), db, schema.DialectMySQL); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return tdb
}

// NewWithFixtures creates a database loaded with testutil.FixtureSQL.
func NewWithFixtures(t *testing.T) *TestDB {
	t.Helper()

	tdb := New(t)
	if err := schema.ExecScript(context.Background(), tdb.DB, testutil.FixtureSQL); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}
	return tdb
}

// Teardown drops the test database.
func (tdb *TestDB) Teardown(t *testing.T) {
	t.Helper()

	if tdb.DB == nil {
		return
	}
	if isValidDatabaseName(tdb.DatabaseName) {
		if _, err := tdb.DB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", tdb.DatabaseName)); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", tdb.DatabaseName, err)
		}
	}
	if err := tdb.DB.Close(); err != nil {
		t.Logf("Warning: failed to close test database connection: %v", err)
	}
}

func getTestConfig(t *testing.T) Config {
	t.Helper()

	cfg := Config{
		Host:     os.Getenv("ORDERGRAPH_TEST_MYSQL_HOST"),
		Port:     os.Getenv("ORDERGRAPH_TEST_MYSQL_PORT"),
		User:     os.Getenv("ORDERGRAPH_TEST_MYSQL_USER"),
		Password: os.Getenv("ORDERGRAPH_TEST_MYSQL_PASSWORD"),
		TLSMode:  os.Getenv("ORDERGRAPH_TEST_MYSQL_TLS"),
	}
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		t.Skip("MySQL credentials not set. Set ORDERGRAPH_TEST_MYSQL_HOST, ORDERGRAPH_TEST_MYSQL_USER, ORDERGRAPH_TEST_MYSQL_PASSWORD to run integration tests")
	}
	if cfg.Port == "" {
		cfg.Port = "3306"
	}
	return cfg
}

func buildDSN(cfg Config, database string) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + cfg.Port
	mc.DBName = database
	mc.ParseTime = true
	mc.Loc = time.UTC
	if cfg.TLSMode != "" {
		mc.TLSConfig = cfg.TLSMode
	}
	return mc.FormatDSN()
}

func configureTestPool(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(name) {
		if isValidDatabaseChar(ch) {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}

// isValidDatabaseName restricts generated names to characters that need no escaping.
func isValidDatabaseName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, ch := range name {
		if !isValidDatabaseChar(ch) {
			return false
		}
	}
	return true
}

func isValidDatabaseChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_'
}
