package db

import (
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory accounts database.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
