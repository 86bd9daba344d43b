// Command oopdb runs SQL against a SQLite database through the oopdb
// Connection and PreparedStatement layer.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tomyedwab/oopdb/database"
)

// Globals holds the flags shared by every command.
type Globals struct {
	DB          string        `name:"db" short:"d" default:":memory:" help:"Database file path or file: URI"`
	Verbose     bool          `short:"v" help:"Enable debug logging"`
	BusyTimeout time.Duration `name:"busy-timeout" default:"5s" help:"How long to wait on a locked database"`
}

// Env carries the process streams a command writes to.
type Env struct {
	Out    io.Writer
	Logger *slog.Logger
}

// CLI defines the command-line interface for oopdb.
var CLI struct {
	Globals

	Exec   ExecCmd   `cmd:"" help:"Run a non-query statement and print the rows affected"`
	Query  QueryCmd  `cmd:"" help:"Run a query and print its rows as tab-separated values"`
	Script ScriptCmd `cmd:"" help:"Run a file of statements inside one transaction"`
}

func (g *Globals) open(env *Env) (*database.Connection, error) {
	return database.Open(g.DB, &database.Config{
		Logger:      env.Logger,
		BusyTimeout: g.BusyTimeout,
	})
}

// prepare compiles sqlText and binds params to placeholders 1..n as text.
func prepare(conn *database.Connection, sqlText string, params []string) (*database.PreparedStatement, error) {
	stmt, err := conn.PrepareStatement(sqlText)
	if err != nil {
		return nil, err
	}
	for i, p := range params {
		if err := stmt.SetText(i+1, p); err != nil {
			return nil, errors.Join(err, stmt.Free())
		}
	}
	return stmt, nil
}

// ExecCmd runs a single statement with ExecuteUpdate.
type ExecCmd struct {
	SQL    string   `arg:"" help:"SQL statement"`
	Params []string `arg:"" optional:"" help:"Values bound to the statement's placeholders"`
}

func (c *ExecCmd) Run(g *Globals, env *Env) (err error) {
	conn, err := g.open(env)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, conn.Close()) }()

	stmt, err := prepare(conn, c.SQL, c.Params)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, stmt.Free()) }()

	if err := stmt.ExecuteUpdate(); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%d rows affected\n", stmt.RowsAffected())
	return nil
}

// QueryCmd iterates a row-producing statement.
type QueryCmd struct {
	SQL    string   `arg:"" help:"SQL query"`
	Params []string `arg:"" optional:"" help:"Values bound to the query's placeholders"`
}

func (c *QueryCmd) Run(g *Globals, env *Env) (err error) {
	conn, err := g.open(env)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, conn.Close()) }()

	stmt, err := prepare(conn, c.SQL, c.Params)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, stmt.Free()) }()

	// Column names are known once the statement has been stepped, so the
	// header is printed after the first Next.
	header := false
	printHeader := func() {
		names := make([]string, stmt.ColumnCount())
		for i := range names {
			names[i] = stmt.ColumnName(i + 1)
		}
		fmt.Fprintln(env.Out, strings.Join(names, "\t"))
		header = true
	}
	var fields []string
	for stmt.Next() {
		if !header {
			printHeader()
		}
		fields = fields[:0]
		for i := 1; i <= stmt.ColumnCount(); i++ {
			if stmt.IsNull(i) {
				fields = append(fields, "NULL")
				continue
			}
			fields = append(fields, stmt.GetText(i))
		}
		fmt.Fprintln(env.Out, strings.Join(fields, "\t"))
	}
	if err := stmt.Err(); err != nil {
		return err
	}
	if !header && stmt.ColumnCount() > 0 {
		printHeader()
	}
	return nil
}

// ScriptCmd runs a file of semicolon-separated statements.
type ScriptCmd struct {
	File string `arg:"" type:"existingfile" help:"SQL script to run"`
}

func (c *ScriptCmd) Run(g *Globals, env *Env) (err error) {
	script, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	conn, err := g.open(env)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, conn.Close()) }()

	if err := conn.StartTransaction(); err != nil {
		return err
	}
	if err := conn.Exec(string(script)); err != nil {
		return errors.Join(err, conn.Rollback())
	}
	if err := conn.Commit(); err != nil {
		return err
	}
	env.Logger.Debug("Script committed", "file", c.File)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("oopdb"),
		kong.Description("Run SQL against a SQLite database"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	env := &Env{Out: os.Stdout, Logger: newLogger(os.Stderr, CLI.Verbose)}
	err := ctx.Run(&CLI.Globals, env)
	ctx.FatalIfErrorf(err)
}
