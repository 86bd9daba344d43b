//go:build !purego_sqlite

package database

import (
	"database/sql/driver"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const engineName = "mattn/go-sqlite3"

var engineDriver = &sqlite3.SQLiteDriver{}

func openEngine(dsn string) (driver.Conn, error) {
	return engineDriver.Open(dsn)
}

func engineErrorCode(err error) (int, bool) {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return int(serr.Code), true
	}
	return 0, false
}
