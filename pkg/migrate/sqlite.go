package migrate

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

// SQLiteSchema mirrors the goose migrations for the local sqlite driver.
// It has no exclusion constraint; overlap is enforced by the vehicle lock
// and the in-transaction availability check.
//
//go:embed sqlite_schema.sql
var SQLiteSchema string

// ApplySQLite creates the schema on a sqlite database. Statements are
// idempotent, so it is safe to run on every boot.
func ApplySQLite(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range splitStatements(SQLiteSchema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
