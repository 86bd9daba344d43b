package database

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Config holds optional settings applied when a Connection is opened.
// A nil *Config is equivalent to the zero value.
type Config struct {
	Logger      *slog.Logger      // Optional, defaults to a text logger on os.Stderr
	BusyTimeout time.Duration     // Optional, 0 keeps the engine driver's default (5s for mattn/go-sqlite3)
	ForeignKeys bool              // Optional, enables foreign key enforcement

	// Optional, applied after the settings above in key order. Keys must be
	// pragma names (optionally schema-qualified, as in "main.cache_size");
	// values are pasted into the statement unquoted and must come from
	// trusted configuration.
	Pragmas map[string]string
}

var pragmaName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func (c *Config) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// pragmas returns the PRAGMA statements to run on a fresh connection.
func (c *Config) pragmas() ([]string, error) {
	if c == nil {
		return nil, nil
	}
	var stmts []string
	if c.BusyTimeout > 0 {
		stmts = append(stmts, "PRAGMA busy_timeout = "+strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	}
	if c.ForeignKeys {
		stmts = append(stmts, "PRAGMA foreign_keys = ON")
	}
	keys := make([]string, 0, len(c.Pragmas))
	for k := range c.Pragmas {
		if !pragmaName.MatchString(k) {
			return nil, fmt.Errorf("invalid pragma name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, "PRAGMA "+k+" = "+c.Pragmas[k])
	}
	return stmts, nil
}
