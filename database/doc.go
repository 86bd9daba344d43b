// Package database provides an object-style access layer over an embedded
// SQLite engine. A Connection owns one engine connection and is the factory
// for PreparedStatements and transaction brackets; a PreparedStatement owns
// one compiled statement and mediates parameter binding, row iteration and
// update execution.
//
// Typical use:
//
//	conn, err := database.Open("app.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	stmt, err := conn.PrepareStatement("INSERT INTO t VALUES (?, ?)")
//	if err != nil {
//	    return err
//	}
//	defer stmt.Free()
//
//	stmt.SetInt(1, 42)
//	stmt.SetText(2, "hello")
//	if err := stmt.ExecuteUpdate(); err != nil {
//	    return err
//	}
//
// Placeholder and column indices are 1-based, as in the SQL text. Neither
// type is safe for concurrent use. Every Connection must be closed and every
// PreparedStatement freed by the caller, including on error paths.
//
// The engine is github.com/mattn/go-sqlite3 by default. Building with
// -tags purego_sqlite switches to the pure Go modernc.org/sqlite engine.
package database
