// Package postgrestest provides an in-memory database carrying the same
// schema as production, for repository tests.
package postgrestest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres"
)

var seq atomic.Int64

var dialect = strings.NewReplacer(
	"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
	"DEFAULT now()", "DEFAULT CURRENT_TIMESTAMP",
	"TIMESTAMPTZ", "TIMESTAMP",
)

// NewDB returns a fresh sqlite database with the schema applied. Each call
// gets its own shared-cache database so tests do not interfere.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pipeline_%d?mode=memory&cache=shared&_loc=UTC", seq.Add(1))
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection keeps the in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range postgres.Statements() {
		if _, err := db.Exec(dialect.Replace(stmt)); err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return db
}
