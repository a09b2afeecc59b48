package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/fluxorio/reactor/pkg/db"
	"github.com/fluxorio/reactor/pkg/reactor"
	"github.com/fluxorio/reactor/pkg/reactorlog"
)

func openTestPool(t *testing.T) *db.Pool {
	t.Helper()
	cfg := db.DefaultPoolConfig("file::memory:?cache=shared", "sqlite3")
	pool, err := db.NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestDialectPlaceholders(t *testing.T) {
	if got := DialectPostgres.placeholder(2); got != "$2" {
		t.Errorf("DialectPostgres.placeholder(2) = %q, want $2", got)
	}
	if got := DialectSQLite.placeholder(2); got != "?" {
		t.Errorf("DialectSQLite.placeholder(2) = %q, want ?", got)
	}
}

func TestDestructorInsertsSnapshotRow(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	if _, err := pool.Exec(ctx, CreateTableDDL("reactor_snapshots")); err != nil {
		t.Fatalf("create table: %v", err)
	}

	r := reactor.New(
		reactor.WithName("snaptest"),
		reactor.WithInitializer(func(reactor.Context) any { return map[string]int{"count": 3} }),
		reactor.WithLogger(reactorlog.Discard()),
	)
	r.Start()
	r.Await()

	fn := Destructor(pool, DialectSQLite, "reactor_snapshots", r)
	fn()

	row := pool.DB().QueryRowContext(ctx, `SELECT reactor_name, restarts, state FROM reactor_snapshots WHERE reactor_name = ?`, "snaptest")
	var name, state string
	var restarts int
	if err := row.Scan(&name, &restarts, &state); err != nil {
		t.Fatalf("scan inserted row: %v", err)
	}
	if name != "snaptest" {
		t.Errorf("reactor_name = %q, want snaptest", name)
	}
	if restarts != 0 {
		t.Errorf("restarts = %d, want 0", restarts)
	}
	if state == "" {
		t.Errorf("state column is empty")
	}
}

func TestDestructorSwallowsWriteFailureAgainstClosedPool(t *testing.T) {
	pool := openTestPool(t)
	_ = pool.Close()

	r := reactor.New(
		reactor.WithInitializer(func(reactor.Context) any { return 1 }),
		reactor.WithLogger(reactorlog.Discard()),
	)
	r.Start()
	r.Await()

	fn := Destructor(pool, DialectSQLite, "reactor_snapshots", r)
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Destructor on a closed pool did not return")
	}
}
