package sqlt_test

import (
	"regexp"
	"testing"

	"github.com/jdarko/schemalite"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, pattern string) *regexp.Regexp {
	t.Helper()
	return regexp.MustCompile(pattern)
}

// getTestDB opens a fresh in-memory target connection, wrapped the way
// Orchestrator expects it.
func getTestDB(t *testing.T) sqlt.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlt.Wrap(db)
}
