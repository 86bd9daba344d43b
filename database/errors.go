package database

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionClosed   = errors.New("connection is closed")
	ErrStatementFinalized = errors.New("statement is finalized")
	ErrPlaceholderRange   = errors.New("placeholder index out of range")
	ErrRowsReturned       = errors.New("statement returned rows; read them with Next")
)

// noErrorMessage is what ErrorMessage reports before any failure, matching
// the engine's own wording.
const noErrorMessage = "not an error"

func opError(op string, err error) error {
	return fmt.Errorf("oopdb: %s: %w", op, err)
}

// EngineCode returns the engine's primary result code carried by err, such
// as 19 for a constraint violation. The second result is false when err did
// not originate in the engine.
func EngineCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	return engineErrorCode(err)
}
