package driver

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tomyedwab/oopdb/sqlproxy/types"
)

// CallHost is the function that carries a request payload to the host and
// returns its response. It must be set before any database operation, either
// directly or through SetHostHandler.
var CallHost func(requestPayload []byte) (responsePayload []byte, err error)

// SetHostHandler sets the function used to proxy queries to the host. For an
// in-process host this is (*host.SQLHost).HandleRequest.
func SetHostHandler(handler func(requestPayload []byte) (responsePayload []byte, err error)) {
	CallHost = handler
}

const driverName = "sqlproxy"

func init() {
	sql.Register(driverName, &Driver{})
}

// errorResponse is implemented by every response type.
type errorResponse interface {
	hostError() string
}

type generalResponse struct{ types.GeneralResponse }
type queryResponse struct{ types.QueryResponse }
type execResponse struct{ types.ExecResponse }

func (r *generalResponse) hostError() string { return r.Error }
func (r *queryResponse) hostError() string   { return r.Error }
func (r *execResponse) hostError() string    { return r.Error }

// roundTrip sends req to the host and decodes the reply into resp. A host
// side failure is returned as an error naming op.
func roundTrip(op string, req types.SQLRequest, resp errorResponse) error {
	if CallHost == nil {
		return fmt.Errorf("sqlproxy: CallHost function is not set")
	}
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("sqlproxy: failed to marshal %s request: %w", op, err)
	}

	respPayload, err := CallHost(reqPayload)
	if err != nil {
		return fmt.Errorf("sqlproxy: CallHost for %s failed: %w", op, err)
	}

	if err := json.Unmarshal(respPayload, resp); err != nil {
		return fmt.Errorf("sqlproxy: failed to unmarshal %s response: %w", op, err)
	}
	if msg := resp.hostError(); msg != "" {
		return fmt.Errorf("sqlproxy: host %s error: %s", op, msg)
	}
	return nil
}

// --- Driver implementation ---

// Driver is the SQL driver for the proxy.
type Driver struct{}

// Open returns a new connection to the database.
// If name is non-empty, it is the ID of a transaction the host already
// started (see host.SQLHost.BeginHostTx) and the connection joins it.
func (d *Driver) Open(name string) (driver.Conn, error) {
	if CallHost == nil {
		return nil, fmt.Errorf("sqlproxy: CallHost function is not set")
	}
	return &Conn{HostTxID: name}, nil
}

// --- Connection implementation ---

// Conn implements the driver.Conn interface.
type Conn struct {
	HostTxID    string // For transactions initiated by the host and passed via DSN
	currentTxID string // For transactions initiated by driver.Begin()
}

// txID returns the transaction requests on this connection run in.
func (c *Conn) txID() string {
	if c.currentTxID != "" {
		return c.currentTxID
	}
	return c.HostTxID
}

// Prepare returns a prepared statement, suitable for query or execution.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	var resp generalResponse
	if err := roundTrip("prepare", types.SQLRequest{Command: "prepare", SQL: query, TxID: c.txID()}, &resp); err != nil {
		return nil, err
	}
	if resp.StmtID == "" {
		return nil, fmt.Errorf("sqlproxy: host did not return a StmtID for prepare")
	}
	return &Stmt{conn: c, query: query, stmtID: resp.StmtID}, nil
}

// Close resets the host's statements and transaction. The host keeps its
// database connection open.
func (c *Conn) Close() error {
	var resp generalResponse
	return roundTrip("close_conn", types.SQLRequest{Command: "close_conn"}, &resp)
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	if c.currentTxID != "" {
		return nil, fmt.Errorf("sqlproxy: transaction already active on this connection (TxID: %s)", c.currentTxID)
	}

	if c.HostTxID != "" { // Connection was opened with a HostTxID from the DSN
		c.currentTxID = c.HostTxID
		return &Tx{conn: c, txID: c.HostTxID}, nil
	}

	var resp generalResponse
	if err := roundTrip("begin_tx", types.SQLRequest{Command: "begin_tx"}, &resp); err != nil {
		return nil, err
	}
	if resp.TxID == "" {
		return nil, fmt.Errorf("sqlproxy: host did not return a transaction ID for begin_tx")
	}

	c.currentTxID = resp.TxID
	return &Tx{conn: c, txID: resp.TxID}, nil
}

// --- Statement implementation ---

// Stmt implements the driver.Stmt interface.
type Stmt struct {
	conn   *Conn
	query  string // Original query, mainly for context/debugging
	stmtID string // Host-provided statement ID
}

// Close closes the statement.
func (s *Stmt) Close() error {
	var resp generalResponse
	if err := roundTrip("close_stmt", types.SQLRequest{Command: "close_stmt", StmtID: s.stmtID}, &resp); err != nil {
		return err
	}
	s.stmtID = "" // Mark as closed
	return nil
}

// NumInput returns -1; the host binds whatever it receives and reports
// mismatches itself.
func (s *Stmt) NumInput() int {
	return -1
}

func convertDriverValues(args []driver.Value) ([]types.Value, error) {
	params := make([]types.Value, len(args))
	for i, v := range args {
		switch val := v.(type) {
		case nil:
			params[i] = types.Value{Type: types.TypeNull}
		case int64:
			params[i] = types.Value{Type: types.TypeInt, Int: val}
		case float64:
			params[i] = types.Value{Type: types.TypeDouble, Double: val}
		case bool:
			params[i] = types.Value{Type: types.TypeInt}
			if val {
				params[i].Int = 1
			}
		case string:
			params[i] = types.Value{Type: types.TypeText, Text: val}
		case []byte:
			params[i] = types.Value{Type: types.TypeBlob, Blob: val}
		case time.Time:
			params[i] = types.Value{Type: types.TypeText, Text: val.Format(time.RFC3339Nano)}
		default:
			return nil, fmt.Errorf("sqlproxy: unsupported argument type %T at position %d", v, i+1)
		}
	}
	return params, nil
}

// Exec executes a prepared statement with the given arguments and returns a Result.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	params, err := convertDriverValues(args)
	if err != nil {
		return nil, err
	}
	var resp execResponse
	req := types.SQLRequest{Command: "exec", StmtID: s.stmtID, Params: params, TxID: s.conn.txID()}
	if err := roundTrip("exec", req, &resp); err != nil {
		return nil, err
	}
	return &sqlProxyResult{lastInsertID: resp.LastInsertID, rowsAffected: resp.RowsAffected}, nil
}

// Query executes a prepared statement with the given arguments and returns Rows.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	params, err := convertDriverValues(args)
	if err != nil {
		return nil, err
	}
	var resp queryResponse
	req := types.SQLRequest{Command: "query", StmtID: s.stmtID, Params: params, TxID: s.conn.txID()}
	if err := roundTrip("query", req, &resp); err != nil {
		return nil, err
	}
	return &sqlProxyRows{columns: resp.Columns, data: resp.Rows}, nil
}

// --- Transaction implementation ---

// Tx implements the driver.Tx interface.
type Tx struct {
	conn *Conn
	txID string // Host-provided transaction ID
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.finish("commit")
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.finish("rollback")
}

func (t *Tx) finish(command string) error {
	if t.txID == "" {
		return fmt.Errorf("sqlproxy: transaction already committed or rolled back")
	}
	txID := t.txID

	// Whatever the host answers, the transaction is over from this
	// connection's point of view; the host closes it on failure too.
	t.conn.currentTxID = ""
	if t.conn.HostTxID == txID {
		t.conn.HostTxID = ""
	}
	t.txID = ""

	var resp generalResponse
	if err := roundTrip(command, types.SQLRequest{Command: command, TxID: txID}, &resp); err != nil {
		return fmt.Errorf("%w (TxID: %s)", err, txID)
	}
	return nil
}

// --- Result implementation ---

// sqlProxyResult implements the driver.Result interface.
type sqlProxyResult struct {
	lastInsertID int64
	rowsAffected int64
}

// LastInsertId returns the database's auto-generated ID after, for example, an INSERT into a table with primary key.
func (r *sqlProxyResult) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

// RowsAffected returns the number of rows affected by the query.
func (r *sqlProxyResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- Rows implementation ---

// sqlProxyRows implements the driver.Rows interface.
type sqlProxyRows struct {
	columns         []string
	data            [][]types.Value // All rows data, pre-fetched
	currentRowIndex int
}

// Columns returns the names of the columns. The number of columns of the result is inferred from the length of the slice.
func (r *sqlProxyRows) Columns() []string {
	return r.columns
}

// Close closes the Rows, preventing further enumeration. The host has
// already reset the statement, so this is a client-side cleanup.
func (r *sqlProxyRows) Close() error {
	r.data = nil
	r.currentRowIndex = 0
	return nil
}

// Next is called to populate the next row of data into the provided slice. The provided slice will be the same size as the Columns() are wide.
// Next should return io.EOF when there are no more rows.
func (r *sqlProxyRows) Next(dest []driver.Value) error {
	if r.currentRowIndex >= len(r.data) {
		return io.EOF
	}

	rowData := r.data[r.currentRowIndex]
	if len(rowData) != len(dest) {
		return fmt.Errorf("sqlproxy: column count mismatch. Expected %d, got %d", len(dest), len(rowData))
	}

	for i, val := range rowData {
		switch val.Type {
		case types.TypeInt:
			dest[i] = val.Int
		case types.TypeDouble:
			dest[i] = val.Double
		case types.TypeText:
			dest[i] = val.Text
		case types.TypeBlob:
			if val.Blob == nil {
				dest[i] = []byte{}
			} else {
				dest[i] = val.Blob
			}
		default:
			dest[i] = nil
		}
	}

	r.currentRowIndex++
	return nil
}
