package testing

import (
	"context"
	"database/sql"
	"testing"

	"github.com/desertthunder/tubesync/internal/shared"
)

// NewDatabase opens an in-memory SQLite database with every migration applied.
// It is closed when the test ends.
func NewDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}
