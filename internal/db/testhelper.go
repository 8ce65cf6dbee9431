package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite returns a migrated history database under t.TempDir().
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open test history: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
