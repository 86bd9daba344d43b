//go:build !purego_sqlite

package database

import (
	"path"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// openFileDB opens a file database through the access layer plus an
// independent sqlx handle on the same file for checking what was persisted.
func openFileDB(t *testing.T) (*Connection, *sqlx.DB) {
	t.Helper()
	dbPath := path.Join(t.TempDir(), "test_tx.db")
	conn, err := Open(dbPath, quietConfig())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	mustUpdate(t, conn, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")

	db := sqlx.MustConnect("sqlite3", dbPath)
	t.Cleanup(func() {
		db.Close()
	})
	return conn, db
}

func insertItem(t *testing.T, conn *Connection, name string) {
	t.Helper()
	stmt := mustPrepare(t, conn, "INSERT INTO items (name) VALUES (?)")
	defer stmt.Free()
	stmt.SetText(1, name)
	if err := stmt.ExecuteUpdate(); err != nil {
		t.Fatalf("insert %q returned error: %v", name, err)
	}
}

func persistedNames(t *testing.T, db *sqlx.DB) []string {
	t.Helper()
	var names []string
	if err := db.Select(&names, "SELECT name FROM items ORDER BY id"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	return names
}

func TestRollbackDiscardsUpdates(t *testing.T) {
	conn, db := openFileDB(t)
	insertItem(t, conn, "before")

	if err := conn.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction returned error: %v", err)
	}
	insertItem(t, conn, "inside")
	if got := countRows(t, conn, "items"); got != 2 {
		t.Errorf("expected the transaction to see 2 rows, got %d", got)
	}
	if err := conn.Rollback(); err != nil {
		t.Fatalf("Rollback returned error: %v", err)
	}

	names := persistedNames(t, db)
	if len(names) != 1 || names[0] != "before" {
		t.Errorf("expected only [before] after rollback, got %v", names)
	}
}

func TestCommitPersistsUpdates(t *testing.T) {
	conn, db := openFileDB(t)

	if err := conn.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction returned error: %v", err)
	}
	insertItem(t, conn, "one")
	insertItem(t, conn, "two")
	if err := conn.Commit(); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}

	names := persistedNames(t, db)
	if len(names) != 2 || names[0] != "one" || names[1] != "two" {
		t.Errorf("expected [one two] after commit, got %v", names)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := path.Join(t.TempDir(), "reopen.db")
	conn, err := Open(dbPath, quietConfig())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	mustUpdate(t, conn, "CREATE TABLE kv (k TEXT PRIMARY KEY, v BLOB)")
	stmt := mustPrepare(t, conn, "INSERT INTO kv VALUES (?, ?)")
	stmt.SetText(1, "key")
	stmt.SetBlob(2, []byte("value"))
	if err := stmt.ExecuteUpdate(); err != nil {
		t.Fatalf("ExecuteUpdate returned error: %v", err)
	}
	stmt.Free()
	if err := conn.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	db := sqlx.MustConnect("sqlite3", dbPath)
	defer db.Close()
	var value []byte
	if err := db.Get(&value, "SELECT v FROM kv WHERE k = $1", "key"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(value) != "value" {
		t.Errorf("expected %q, got %q", "value", value)
	}
}
