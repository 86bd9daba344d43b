package types

// --- JSON structures for host communication ---

// Value type tags.
const (
	TypeNull   = "null"
	TypeInt    = "int"
	TypeDouble = "double"
	TypeText   = "text"
	TypeBlob   = "blob"
)

// Value is one typed parameter or result cell. Only the field matching Type
// is meaningful; Blob travels as base64.
type Value struct {
	Type   string  `json:"type"`
	Int    int64   `json:"int,omitempty"`
	Double float64 `json:"double,omitempty"`
	Text   string  `json:"text,omitempty"`
	Blob   []byte  `json:"blob,omitempty"`
}

// SQLRequest defines the structure for requests sent to the host.
type SQLRequest struct {
	Command string  `json:"command"`
	SQL     string  `json:"sql,omitempty"`
	Params  []Value `json:"params,omitempty"` // Params[0] binds placeholder 1
	StmtID  string  `json:"stmt_id,omitempty"`
	TxID    string  `json:"tx_id,omitempty"`
}

// GeneralResponse is used for commands that don't return rows or specific exec results (e.g., prepare, commit, rollback, close).
type GeneralResponse struct {
	StmtID string `json:"stmt_id,omitempty"` // For 'prepare' command, host returns a statement ID
	TxID   string `json:"tx_id,omitempty"`   // For 'begin_tx' command, host returns a transaction ID
	Error  string `json:"error,omitempty"`
}

// QueryResponse defines the structure for responses from 'query' commands.
type QueryResponse struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
	Error   string    `json:"error,omitempty"`
}

// ExecResponse defines the structure for responses from 'exec' commands.
type ExecResponse struct {
	LastInsertID int64  `json:"last_insert_id"`
	RowsAffected int64  `json:"rows_affected"`
	Error        string `json:"error,omitempty"`
}
