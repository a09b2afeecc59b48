// Package snapshot registers a reactor destructor that writes one
// point-in-time JSON snapshot of a reactor's terminal state to a SQL table
// at implosion. This is deliberately not durable persistence of live
// reactor state — the core's non-goals exclude that — it is a
// caller-registered teardown side effect exercised through the same
// destructor mechanism any other cleanup would use.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxorio/reactor/pkg/db"
	"github.com/fluxorio/reactor/pkg/reactor"

	_ "github.com/jackc/pgx/v5/stdlib" // registers database/sql driver "pgx"
	_ "github.com/lib/pq"              // registers database/sql driver "postgres"
	_ "github.com/mattn/go-sqlite3"    // registers database/sql driver "sqlite3"
)

// Dialect selects the parameter-placeholder style of the target database,
// since database/sql has no dialect-neutral bind syntax.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// CreateTableDDL returns the DDL statement for the table Destructor writes
// into. Callers run it once at startup via Pool.Exec.
func CreateTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	reactor_name TEXT NOT NULL,
	captured_at  TIMESTAMP NOT NULL,
	restarts     INTEGER NOT NULL,
	state        TEXT NOT NULL
)`, table)
}

// Destructor returns a zero-argument function suitable for
// Reactor.AddDestructors that marshals target's current state to JSON and
// inserts one row into table via pool. Marshal or write failures are
// swallowed, matching the destructor-failure policy: implosion must
// continue regardless.
func Destructor(pool *db.Pool, dialect Dialect, table string, target *reactor.Reactor) func() {
	query := fmt.Sprintf(
		"INSERT INTO %s (reactor_name, captured_at, restarts, state) VALUES (%s, %s, %s, %s)",
		table, dialect.placeholder(1), dialect.placeholder(2), dialect.placeholder(3), dialect.placeholder(4),
	)
	return func() {
		payload, err := json.Marshal(target.GetState())
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, query, target.Name(), time.Now().UTC(), target.Restarts(), string(payload))
	}
}
