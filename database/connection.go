package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
)

// Connection owns one engine connection. It is created by Open and must be
// released with Close; no method may be used after Close.
type Connection struct {
	conn    driver.Conn
	path    string
	logger  *slog.Logger
	lastErr error
	closed  bool
}

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory database. On failure no Connection is returned.
func Open(path string, config *Config) (*Connection, error) {
	logger := config.logger().With("path", path)

	pragmas, err := config.pragmas()
	if err != nil {
		logger.Error("open failed", "op", "open", "error", err)
		return nil, opError("open", err)
	}

	conn, err := openEngine(path)
	if err != nil {
		logger.Error("open failed", "op", "open", "error", err)
		return nil, opError("open", err)
	}

	c := &Connection{conn: conn, path: path, logger: logger}
	for _, pragma := range pragmas {
		if err := c.exec(pragma); err != nil {
			logger.Error("open failed", "op", "open", "sql", pragma, "error", err)
			_ = conn.Close()
			return nil, opError("open", err)
		}
	}

	logger.Debug("connection opened", "engine", engineName)
	return c, nil
}

// Path returns the path the connection was opened with.
func (c *Connection) Path() string {
	return c.path
}

// Close releases the engine connection. The Connection is unusable
// afterwards even when Close reports an error.
func (c *Connection) Close() error {
	if c.closed {
		return c.fail("close", ErrConnectionClosed)
	}
	conn := c.conn
	c.conn = nil
	c.closed = true
	if err := conn.Close(); err != nil {
		return c.fail("close", err)
	}
	c.logger.Debug("connection closed")
	return nil
}

// PrepareStatement compiles sqlText. The returned statement belongs to the
// caller, who must Free it.
func (c *Connection) PrepareStatement(sqlText string) (*PreparedStatement, error) {
	if c.closed {
		return nil, c.fail("prepare", ErrConnectionClosed, "sql", sqlText)
	}
	stmt, err := c.conn.Prepare(sqlText)
	if err != nil {
		return nil, c.fail("prepare", err, "sql", sqlText)
	}
	return newPreparedStatement(c, stmt, sqlText), nil
}

// Exec runs sqlText, which may hold several statements, discarding any rows.
func (c *Connection) Exec(sqlText string) error {
	if c.closed {
		return c.fail("exec", ErrConnectionClosed, "sql", sqlText)
	}
	if err := c.exec(sqlText); err != nil {
		return c.fail("exec", err, "sql", sqlText)
	}
	return nil
}

// StartTransaction begins a transaction. Transactions do not nest; the
// engine rejects a second StartTransaction before Commit or Rollback.
func (c *Connection) StartTransaction() error {
	return c.transaction("start transaction", "BEGIN TRANSACTION")
}

// Commit commits the active transaction.
func (c *Connection) Commit() error {
	return c.transaction("commit", "COMMIT")
}

// Rollback aborts the active transaction.
func (c *Connection) Rollback() error {
	return c.transaction("rollback", "ROLLBACK")
}

// ErrorMessage returns the text of the most recent failure on this
// connection or on any statement prepared from it.
func (c *Connection) ErrorMessage() string {
	if c.lastErr == nil {
		return noErrorMessage
	}
	return c.lastErr.Error()
}

func (c *Connection) transaction(op, command string) error {
	if c.closed {
		return c.fail(op, ErrConnectionClosed)
	}
	// The engine error carries its own message, so a failed command is
	// always reported with text.
	if err := c.exec(command); err != nil {
		return c.fail(op, err)
	}
	c.logger.Debug(op, "op", op)
	return nil
}

func (c *Connection) exec(sqlText string) error {
	if execer, ok := c.conn.(driver.ExecerContext); ok {
		_, err := execer.ExecContext(context.Background(), sqlText, nil)
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}
	stmt, err := c.conn.Prepare(sqlText)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(nil)
	return errors.Join(err, stmt.Close())
}

// counters returns the row count of the most recent INSERT, UPDATE or
// DELETE and the most recently inserted rowid on this connection.
func (c *Connection) counters() (changes, lastID int64, err error) {
	if c.closed {
		return 0, 0, ErrConnectionClosed
	}
	stmt, err := c.conn.Prepare("SELECT changes(), last_insert_rowid()")
	if err != nil {
		return 0, 0, err
	}
	defer func() { err = errors.Join(err, stmt.Close()) }()

	rows, err := stmt.Query(nil)
	if err != nil {
		return 0, 0, err
	}
	row := make([]driver.Value, 2)
	err = rows.Next(row)
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, 0, err
	}
	return asInt64(row[0]), asInt64(row[1]), nil
}

// fail records err as the connection's last error, writes a diagnostic and
// returns err wrapped with op.
func (c *Connection) fail(op string, err error, attrs ...any) error {
	c.lastErr = err
	c.logger.Error(op+" failed", append([]any{"op", op, "error", err}, attrs...)...)
	return opError(op, err)
}
