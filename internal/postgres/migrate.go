package postgres

import (
	"context"
	_ "embed"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// Statements returns the embedded DDL split into single statements.
func Statements() []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";\n") {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, strings.TrimSpace(stmt))
		}
	}
	return out
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return WithTx(ctx, db, "migrate", func(tx *sqlx.Tx) error {
		for _, stmt := range Statements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
