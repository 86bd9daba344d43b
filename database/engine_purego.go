//go:build purego_sqlite

package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	sqlite "modernc.org/sqlite"
)

const engineName = "modernc.org/sqlite"

// engineDriver is the instance modernc.org/sqlite registers with
// database/sql. sql.Open does not connect, so nothing is left open here.
var engineDriver = func() driver.Driver {
	db, err := sql.Open("sqlite", "")
	if err != nil {
		panic("oopdb: modernc.org/sqlite driver is not registered: " + err.Error())
	}
	defer db.Close()
	return db.Driver()
}()

func openEngine(dsn string) (driver.Conn, error) {
	return engineDriver.Open(dsn)
}

func engineErrorCode(err error) (int, bool) {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		// Extended codes keep the primary code in the low byte.
		return serr.Code() & 0xff, true
	}
	return 0, false
}
