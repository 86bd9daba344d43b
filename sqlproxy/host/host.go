package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomyedwab/oopdb/database"
	"github.com/tomyedwab/oopdb/sqlproxy/types"
)

// SQLHost handles proxy requests for one SQLite connection.
// It manages prepared statements and the connection's transaction.
type SQLHost struct {
	conn  *database.Connection
	stmts map[string]database.Statement
	txID  string
	// mu serializes every request; the connection itself is not safe for
	// concurrent use.
	mu sync.Mutex
}

// NewSQLHost creates a new SQLHost instance.
// The provided connection must be open. It stays owned by the caller, who
// closes it after the host is done.
func NewSQLHost(conn *database.Connection) *SQLHost {
	return &SQLHost{
		conn:  conn,
		stmts: make(map[string]database.Statement),
	}
}

// HandleRequest processes a raw SQL request payload and returns a raw response payload.
// This is the main entry point for host-side SQL proxying logic.
func (h *SQLHost) HandleRequest(requestPayload []byte) ([]byte, error) {
	var req types.SQLRequest
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return marshalErrorResponse(fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var responseData interface{}
	var opErr error

	switch req.Command {
	case "prepare":
		responseData, opErr = h.handlePrepare(&req)
	case "query":
		responseData, opErr = h.handleQuery(&req)
	case "exec":
		responseData, opErr = h.handleExec(&req)
	case "begin_tx":
		responseData, opErr = h.handleBeginTx(&req)
	case "commit":
		responseData, opErr = h.handleCommit(&req)
	case "rollback":
		responseData, opErr = h.handleRollback(&req)
	case "close_stmt":
		responseData, opErr = h.handleCloseStmt(&req)
	case "close_conn":
		responseData, opErr = h.handleCloseConn(&req)
	default:
		opErr = fmt.Errorf("unknown command: %s", req.Command)
	}

	if opErr != nil {
		return marshalErrorResponse(opErr.Error())
	}

	return json.Marshal(responseData)
}

func marshalErrorResponse(errMsg string) ([]byte, error) {
	resp := types.GeneralResponse{Error: errMsg}
	payload, err := json.Marshal(resp)
	if err != nil {
		// This is a critical failure: can't even marshal the error response.
		// Return a hardcoded JSON string and the marshalling error.
		return []byte(fmt.Sprintf(`{"error":"critical: failed to marshal error response for: %s"}`, errMsg)),
			fmt.Errorf("failed to marshal error response for '%s': %w", errMsg, err)
	}
	// The error for HandleRequest itself is nil here, as the operational error is packaged in the payload.
	return payload, nil
}

// BeginHostTx starts a transaction on behalf of a guest and returns its ID.
// The guest joins it by opening the driver with the ID as its DSN.
func (h *SQLHost) BeginHostTx() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp, err := h.handleBeginTx(&types.SQLRequest{Command: "begin_tx"})
	if err != nil {
		return "", err
	}
	return resp.TxID, nil
}

// checkTx verifies that a request naming a transaction names the active one.
func (h *SQLHost) checkTx(txID string) error {
	if txID != "" && txID != h.txID {
		return fmt.Errorf("transaction not found or already closed: %s", txID)
	}
	return nil
}

func (h *SQLHost) handlePrepare(req *types.SQLRequest) (types.GeneralResponse, error) {
	if err := h.checkTx(req.TxID); err != nil {
		return types.GeneralResponse{}, err
	}
	stmt, err := h.conn.PrepareStatement(req.SQL)
	if err != nil {
		return types.GeneralResponse{}, fmt.Errorf("prepare failed: %w", err)
	}

	stmtID := uuid.NewString()
	h.stmts[stmtID] = stmt
	return types.GeneralResponse{StmtID: stmtID}, nil
}

// statement returns the tracked statement named by the request, or a
// transient one prepared from req.SQL. release frees a transient statement
// and is a no-op for tracked ones.
func (h *SQLHost) statement(req *types.SQLRequest) (stmt database.Statement, release func() error, err error) {
	if err := h.checkTx(req.TxID); err != nil {
		return nil, nil, err
	}
	if req.StmtID != "" {
		stmt, exists := h.stmts[req.StmtID]
		if !exists {
			return nil, nil, fmt.Errorf("statement not found: %s", req.StmtID)
		}
		return stmt, func() error { return nil }, nil
	}
	transient, err := h.conn.PrepareStatement(req.SQL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare failed: %w", err)
	}
	return transient, transient.Free, nil
}

func (h *SQLHost) handleExec(req *types.SQLRequest) (resp types.ExecResponse, err error) {
	stmt, release, err := h.statement(req)
	if err != nil {
		return types.ExecResponse{}, err
	}
	defer func() {
		err = errors.Join(err, release())
	}()

	if err := bindParams(stmt, req.Params); err != nil {
		return types.ExecResponse{}, err
	}
	if err := stmt.ExecuteUpdate(); err != nil {
		return types.ExecResponse{}, fmt.Errorf("exec failed: %w", err)
	}
	return types.ExecResponse{LastInsertID: stmt.LastInsertID(), RowsAffected: stmt.RowsAffected()}, nil
}

func (h *SQLHost) handleQuery(req *types.SQLRequest) (resp types.QueryResponse, err error) {
	stmt, release, err := h.statement(req)
	if err != nil {
		return types.QueryResponse{}, err
	}
	defer func() {
		err = errors.Join(err, release())
	}()

	// A tracked statement may still be positioned from an earlier query.
	if err := stmt.Reset(); err != nil {
		return types.QueryResponse{}, fmt.Errorf("reset failed: %w", err)
	}
	if err := bindParams(stmt, req.Params); err != nil {
		return types.QueryResponse{}, err
	}

	var results [][]types.Value
	for stmt.Next() {
		row := make([]types.Value, stmt.ColumnCount())
		for i := range row {
			row[i] = toValue(stmt.GetValue(i + 1))
		}
		results = append(results, row)
	}
	if err := stmt.Err(); err != nil {
		return types.QueryResponse{}, fmt.Errorf("error iterating rows: %w", err)
	}

	columns := make([]string, stmt.ColumnCount())
	for i := range columns {
		columns[i] = stmt.ColumnName(i + 1)
	}
	if err := stmt.Reset(); err != nil {
		return types.QueryResponse{}, fmt.Errorf("reset failed: %w", err)
	}
	return types.QueryResponse{Columns: columns, Rows: results}, nil
}

func bindParams(stmt database.Writer, params []types.Value) error {
	if err := stmt.ClearBindings(); err != nil {
		return fmt.Errorf("clear bindings failed: %w", err)
	}
	for i, p := range params {
		placeholder := i + 1
		var err error
		switch p.Type {
		case types.TypeNull, "":
			err = stmt.SetNull(placeholder)
		case types.TypeInt:
			err = stmt.SetInt64(placeholder, p.Int)
		case types.TypeDouble:
			err = stmt.SetDouble(placeholder, p.Double)
		case types.TypeText:
			err = stmt.SetText(placeholder, p.Text)
		case types.TypeBlob:
			blob := p.Blob
			if blob == nil {
				// An empty blob arrives without a field; keep it distinct from NULL.
				blob = []byte{}
			}
			err = stmt.SetBlob(placeholder, blob)
		default:
			err = fmt.Errorf("unknown value type: %s", p.Type)
		}
		if err != nil {
			return fmt.Errorf("bind parameter %d failed: %w", placeholder, err)
		}
	}
	return nil
}

func toValue(v any) types.Value {
	switch v := v.(type) {
	case nil:
		return types.Value{Type: types.TypeNull}
	case int64:
		return types.Value{Type: types.TypeInt, Int: v}
	case float64:
		return types.Value{Type: types.TypeDouble, Double: v}
	case string:
		return types.Value{Type: types.TypeText, Text: v}
	case []byte:
		return types.Value{Type: types.TypeBlob, Blob: v}
	case bool:
		if v {
			return types.Value{Type: types.TypeInt, Int: 1}
		}
		return types.Value{Type: types.TypeInt, Int: 0}
	case time.Time:
		return types.Value{Type: types.TypeText, Text: v.Format(time.RFC3339Nano)}
	default:
		return types.Value{Type: types.TypeText, Text: fmt.Sprint(v)}
	}
}

func (h *SQLHost) handleBeginTx(req *types.SQLRequest) (types.GeneralResponse, error) {
	if h.txID != "" {
		return types.GeneralResponse{}, fmt.Errorf("transaction already active: %s", h.txID)
	}
	if err := h.conn.StartTransaction(); err != nil {
		return types.GeneralResponse{}, fmt.Errorf("begin transaction failed: %w", err)
	}

	h.txID = uuid.NewString()
	return types.GeneralResponse{TxID: h.txID}, nil
}

func (h *SQLHost) handleCommit(req *types.SQLRequest) (types.GeneralResponse, error) {
	if req.TxID == "" || req.TxID != h.txID {
		return types.GeneralResponse{}, fmt.Errorf("transaction not found or already closed: %s", req.TxID)
	}
	h.txID = ""

	if err := h.conn.Commit(); err != nil {
		// The guest treats the transaction as finished either way, so do
		// not leave it open on the connection.
		_ = h.conn.Rollback()
		return types.GeneralResponse{}, fmt.Errorf("commit failed: %w", err)
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleRollback(req *types.SQLRequest) (types.GeneralResponse, error) {
	if req.TxID == "" || req.TxID != h.txID {
		return types.GeneralResponse{}, fmt.Errorf("transaction not found or already closed: %s", req.TxID)
	}
	h.txID = ""

	if err := h.conn.Rollback(); err != nil {
		return types.GeneralResponse{}, fmt.Errorf("rollback failed: %w", err)
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleCloseStmt(req *types.SQLRequest) (types.GeneralResponse, error) {
	stmt, exists := h.stmts[req.StmtID]
	if !exists {
		// Closing an unknown or already closed statement is not an error,
		// matching typical driver behavior (idempotent close).
		return types.GeneralResponse{}, nil
	}
	delete(h.stmts, req.StmtID)

	if err := stmt.Free(); err != nil {
		return types.GeneralResponse{}, fmt.Errorf("close statement failed: %w", err)
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleCloseConn(req *types.SQLRequest) (types.GeneralResponse, error) {
	// Free all open statements associated with this host instance
	for id, stmt := range h.stmts {
		_ = stmt.Free() // Ignore error, best effort
		delete(h.stmts, id)
	}

	// Rollback a pending transaction
	if h.txID != "" {
		_ = h.conn.Rollback() // Ignore error, best effort
		h.txID = ""
	}

	// The connection is owned by the caller of NewSQLHost, so it is not
	// closed here. This command resets the host's internal state.
	return types.GeneralResponse{}, nil
}
