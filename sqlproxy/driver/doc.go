// Package driver implements a database/sql/driver that proxies SQL queries
// to an sqlproxy host, which runs them on an oopdb database.Connection.
//
// The driver serializes every operation into a JSON types.SQLRequest and
// passes it to a transport function. The host may live in the same process
// (call host.SQLHost.HandleRequest directly) or behind any boundary that can
// carry bytes, such as a WebAssembly host function.
//
// Usage:
//
//  1. Import the driver package. This registers the driver with the name "sqlproxy".
//     import _ "github.com/tomyedwab/oopdb/sqlproxy/driver"
//
// 2. Before opening a database connection, set the transport:
//
//	conn, _ := database.Open("app.db", nil)
//	h := host.NewSQLHost(conn)
//	driver.SetHostHandler(h.HandleRequest)
//
//  3. Open a database connection using sql.Open (or sqlx.Open):
//     db, err := sql.Open("sqlproxy", "") // DSN is an optional host transaction ID
//     if err != nil {
//     // handle error
//     }
//     db.SetMaxOpenConns(1)
//     defer db.Close()
//
// 4. Use the *sql.DB object as usual to execute queries, prepared statements, and transactions.
//
// Communication Protocol:
//
// Parameters and result cells travel as typed types.Value records, so
// integers, reals, text and blobs keep their type across the boundary.
// Responses are `QueryResponse`, `ExecResponse`, or `GeneralResponse`, each
// with an `error` field carrying the host-side failure text.
//
// Implemented Interfaces:
//
// The driver implements the following core `database/sql/driver` interfaces:
// - driver.Driver
// - driver.Conn
// - driver.Stmt
// - driver.Tx
// - driver.Result
// - driver.Rows
//
// Limitations:
//
//   - A host serves exactly one database connection and one transaction at
//     a time. Closing any driver connection resets all host state, so limit
//     the pool to one open connection.
//   - Context-aware methods are not implemented; database/sql falls back
//     to the non-context variants.
//   - Query results are fetched in full by the host before Rows is returned.
package driver
