package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
)

// Reader is the row-reading half of a statement. Column indices are 1-based.
type Reader interface {
	Next() bool
	Err() error
	ColumnCount() int
	ColumnName(column int) string
	IsNull(column int) bool
	GetText(column int) string
	GetInt(column int) int
	GetInt64(column int) int64
	GetDouble(column int) float64
	GetBlob(column int) []byte
	GetValue(column int) any
}

// Writer is the binding and update half of a statement. Placeholder indices
// are 1-based.
type Writer interface {
	ParameterCount() int
	SetText(placeholder int, value string) error
	SetInt(placeholder int, value int) error
	SetInt64(placeholder int, value int64) error
	SetDouble(placeholder int, value float64) error
	SetBlob(placeholder int, value []byte) error
	SetNull(placeholder int) error
	ClearBindings() error
	ExecuteUpdate() error
	RowsAffected() int64
	LastInsertID() int64
}

// Statement is the full method set of a prepared statement.
type Statement interface {
	Reader
	Writer
	SQL() string
	Reset() error
	Free() error
}

var _ Statement = (*PreparedStatement)(nil)

type stmtState int

const (
	stmtPrepared stmtState = iota
	stmtStepping
	stmtExhausted
	stmtFinalized
)

// PreparedStatement owns one compiled statement. It is created by
// Connection.PrepareStatement and must be released with Free.
type PreparedStatement struct {
	stmt driver.Stmt
	// conn is not owned; it is used only to report errors.
	conn    *Connection
	sqlText string

	paramCount int
	params     []driver.Value

	rows    driver.Rows
	columns []string
	row     []driver.Value
	hasRow  bool

	state        stmtState
	err          error
	rowsAffected int64
	lastInsertID int64
}

func newPreparedStatement(conn *Connection, stmt driver.Stmt, sqlText string) *PreparedStatement {
	return &PreparedStatement{
		stmt:       stmt,
		conn:       conn,
		sqlText:    sqlText,
		paramCount: stmt.NumInput(),
	}
}

// SQL returns the text the statement was prepared from.
func (s *PreparedStatement) SQL() string {
	return s.sqlText
}

// ParameterCount returns the number of placeholders, or -1 if the engine
// does not report it.
func (s *PreparedStatement) ParameterCount() int {
	return s.paramCount
}

// --- Writing ---

func (s *PreparedStatement) SetText(placeholder int, value string) error {
	return s.bind("set text", placeholder, value)
}

func (s *PreparedStatement) SetInt(placeholder int, value int) error {
	return s.bind("set int", placeholder, int64(value))
}

func (s *PreparedStatement) SetInt64(placeholder int, value int64) error {
	return s.bind("set int", placeholder, value)
}

func (s *PreparedStatement) SetDouble(placeholder int, value float64) error {
	return s.bind("set double", placeholder, value)
}

// SetBlob binds value without copying it; the slice must stay unmodified
// until the statement next executes. A nil slice binds NULL.
func (s *PreparedStatement) SetBlob(placeholder int, value []byte) error {
	if value == nil {
		return s.bind("set blob", placeholder, nil)
	}
	return s.bind("set blob", placeholder, value)
}

func (s *PreparedStatement) SetNull(placeholder int) error {
	return s.bind("set null", placeholder, nil)
}

// ClearBindings resets every placeholder to NULL.
func (s *PreparedStatement) ClearBindings() error {
	if s.state == stmtFinalized {
		return s.fail("clear bindings", ErrStatementFinalized)
	}
	s.params = s.params[:0]
	return nil
}

func (s *PreparedStatement) bind(op string, placeholder int, value driver.Value) error {
	if s.state == stmtFinalized {
		return s.fail(op, ErrStatementFinalized)
	}
	if placeholder < 1 || (s.paramCount >= 0 && placeholder > s.paramCount) {
		return s.fail(op, fmt.Errorf("%w: %d", ErrPlaceholderRange, placeholder))
	}
	slot := placeholder - 1
	for len(s.params) <= slot {
		s.params = append(s.params, nil)
	}
	s.params[slot] = value
	return nil
}

// args returns the bound values in placeholder order, padded with NULL up
// to the placeholder count.
func (s *PreparedStatement) args() []driver.Value {
	for len(s.params) < s.paramCount {
		s.params = append(s.params, nil)
	}
	return s.params
}

// ExecuteUpdate steps a statement that produces no rows and leaves it ready
// to be rebound and executed again. A statement whose first step yields a
// row fails with ErrRowsReturned; the step has still run, so any side
// effect it has (such as INSERT ... RETURNING) is not undone.
func (s *PreparedStatement) ExecuteUpdate() error {
	if s.state == stmtFinalized {
		return s.fail("execute update", ErrStatementFinalized)
	}
	if err := s.closeRows(); err != nil {
		s.state = stmtPrepared
		return s.fail("reset", err)
	}
	s.err = nil
	s.state = stmtPrepared

	// Exec would discard a first row unseen.
	rows, err := s.stmt.Query(s.args())
	if err != nil {
		return s.fail("execute update", err)
	}
	row := make([]driver.Value, len(rows.Columns()))
	stepErr := rows.Next(row)
	closeErr := rows.Close()
	switch {
	case stepErr == nil:
		return s.fail("execute update", errors.Join(ErrRowsReturned, closeErr))
	case !errors.Is(stepErr, io.EOF):
		return s.fail("execute update", stepErr)
	case closeErr != nil:
		return s.fail("reset", closeErr)
	}

	changes, lastID, err := s.conn.counters()
	if err != nil {
		return s.fail("execute update", err)
	}
	s.rowsAffected = changes
	s.lastInsertID = lastID
	return nil
}

// RowsAffected returns the number of rows changed by the last successful
// ExecuteUpdate.
func (s *PreparedStatement) RowsAffected() int64 {
	return s.rowsAffected
}

// LastInsertID returns the rowid of the last row inserted by the last
// successful ExecuteUpdate.
func (s *PreparedStatement) LastInsertID() int64 {
	return s.lastInsertID
}

// --- Reading ---

// Next advances to the next result row. It returns false at the end of the
// results or on failure; Err tells the two apart. Once Next has returned
// false it keeps doing so until Reset or ExecuteUpdate.
func (s *PreparedStatement) Next() bool {
	switch s.state {
	case stmtFinalized:
		s.err = s.fail("next", ErrStatementFinalized)
		return false
	case stmtExhausted:
		return false
	case stmtPrepared:
		rows, err := s.stmt.Query(s.args())
		if err != nil {
			s.state = stmtExhausted
			s.err = s.fail("next", err)
			return false
		}
		s.rows = rows
		s.columns = rows.Columns()
		s.row = make([]driver.Value, len(s.columns))
		s.err = nil
		s.state = stmtStepping
	}

	if err := s.rows.Next(s.row); err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = s.fail("next", err)
		}
		s.state = stmtExhausted
		if closeErr := s.closeRows(); closeErr != nil && s.err == nil {
			s.err = s.fail("reset", closeErr)
		}
		return false
	}
	s.hasRow = true
	return true
}

// Err returns the failure that ended the last row iteration, or nil if it
// reached the end of the results.
func (s *PreparedStatement) Err() error {
	return s.err
}

// ColumnCount returns the number of result columns. It is known once the
// statement has been stepped with Next.
func (s *PreparedStatement) ColumnCount() int {
	return len(s.columns)
}

func (s *PreparedStatement) ColumnName(column int) string {
	if column < 1 || column > len(s.columns) {
		return ""
	}
	return s.columns[column-1]
}

// column returns the raw value of a 1-based column of the current row.
func (s *PreparedStatement) column(column int) driver.Value {
	if !s.hasRow || column < 1 || column > len(s.row) {
		return nil
	}
	return s.row[column-1]
}

func (s *PreparedStatement) IsNull(column int) bool {
	return s.column(column) == nil
}

// GetText returns the column as text. The engine driver decodes text stored
// in a column declared DATE, DATETIME or TIMESTAMP into a time when it
// parses as one, so such values read back in the layout
// "2006-01-02 15:04:05.999999999-07:00" rather than as stored. Declare the
// column TEXT to keep the exact bytes.
func (s *PreparedStatement) GetText(column int) string {
	return asText(s.column(column))
}

func (s *PreparedStatement) GetInt(column int) int {
	return int(asInt64(s.column(column)))
}

func (s *PreparedStatement) GetInt64(column int) int64 {
	return asInt64(s.column(column))
}

func (s *PreparedStatement) GetDouble(column int) float64 {
	return asFloat64(s.column(column))
}

func (s *PreparedStatement) GetBlob(column int) []byte {
	return asBlob(s.column(column))
}

// GetValue returns the column as the engine produced it: nil, int64,
// float64, string, []byte, bool or time.Time.
func (s *PreparedStatement) GetValue(column int) any {
	return s.column(column)
}

// --- Lifecycle ---

// Reset ends any row iteration so the statement can be stepped again from
// the start. Bindings are kept.
func (s *PreparedStatement) Reset() error {
	if s.state == stmtFinalized {
		return s.fail("reset", ErrStatementFinalized)
	}
	err := s.closeRows()
	s.state = stmtPrepared
	s.err = nil
	if err != nil {
		return s.fail("reset", err)
	}
	return nil
}

// Free finalizes the statement. It must be called exactly once; the
// statement is unusable afterwards.
func (s *PreparedStatement) Free() error {
	if s.state == stmtFinalized {
		return s.fail("free", ErrStatementFinalized)
	}
	rowsErr := s.closeRows()
	err := s.stmt.Close()
	s.stmt = nil
	s.params = nil
	s.state = stmtFinalized
	if err = errors.Join(rowsErr, err); err != nil {
		return s.fail("free", err)
	}
	return nil
}

func (s *PreparedStatement) closeRows() error {
	s.hasRow = false
	s.row = nil
	if s.rows == nil {
		return nil
	}
	rows := s.rows
	s.rows = nil
	return rows.Close()
}

func (s *PreparedStatement) fail(op string, err error) error {
	return s.conn.fail(op, err, "sql", s.sqlText)
}
