package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testEnv(t *testing.T) (*Globals, *Env, *bytes.Buffer) {
	t.Helper()
	g := &Globals{
		DB:          filepath.Join(t.TempDir(), "cli.db"),
		BusyTimeout: time.Second,
	}
	out := &bytes.Buffer{}
	return g, &Env{Out: out, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, out
}

func writeScript(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sql")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestExecAndQueryCommands(t *testing.T) {
	g, env, out := testEnv(t)

	if err := (&ExecCmd{SQL: "CREATE TABLE people (name TEXT, age INTEGER)"}).Run(g, env); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := (&ExecCmd{SQL: "INSERT INTO people VALUES (?, ?)", Params: []string{"ada", "36"}}).Run(g, env); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := (&ExecCmd{SQL: "INSERT INTO people VALUES (?, NULL)", Params: []string{"bob"}}).Run(g, env); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if got := out.String(); got != "0 rows affected\n1 rows affected\n1 rows affected\n" {
		t.Errorf("unexpected exec output %q", got)
	}

	out.Reset()
	if err := (&QueryCmd{SQL: "SELECT name, age FROM people WHERE age IS NULL OR age > ? ORDER BY name", Params: []string{"30"}}).Run(g, env); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	want := "name\tage\nada\t36\nbob\tNULL\n"
	if got := out.String(); got != want {
		t.Errorf("expected query output %q, got %q", want, got)
	}
}

func TestQueryPrintsHeaderWithoutRows(t *testing.T) {
	g, env, out := testEnv(t)
	if err := (&QueryCmd{SQL: "SELECT 1 AS one WHERE 0"}).Run(g, env); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got := out.String(); got != "one\n" {
		t.Errorf("expected header only, got %q", got)
	}
}

func TestScriptCommitsAndRollsBack(t *testing.T) {
	g, env, out := testEnv(t)

	ok := writeScript(t, "CREATE TABLE t (a INTEGER); INSERT INTO t VALUES (1); INSERT INTO t VALUES (2);")
	if err := (&ScriptCmd{File: ok}).Run(g, env); err != nil {
		t.Fatalf("script failed: %v", err)
	}

	bad := writeScript(t, "INSERT INTO t VALUES (3); INSERT INTO missing VALUES (4);")
	err := (&ScriptCmd{File: bad}).Run(g, env)
	if err == nil || !strings.Contains(err.Error(), "no such table") {
		t.Fatalf("expected failing script to report the engine error, got %v", err)
	}

	if err := (&QueryCmd{SQL: "SELECT COUNT(*) AS n FROM t"}).Run(g, env); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got := out.String(); got != "n\n2\n" {
		t.Errorf("expected the failed script to be rolled back, got %q", got)
	}
}
