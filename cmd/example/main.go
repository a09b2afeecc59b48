// Command example wires a single reactor to every domain adapter this
// module ships: a WebSocket bridge for browser clients, a NATS fan-in for
// remote producers, an SQLite snapshot destructor, Prometheus metrics, an
// OpenTelemetry trace provider, and a read-only status endpoint. It exists
// to demonstrate the wiring, not as a deployable service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fluxorio/reactor/pkg/db"
	"github.com/fluxorio/reactor/pkg/observability/metrics"
	"github.com/fluxorio/reactor/pkg/observability/tracing"
	"github.com/fluxorio/reactor/pkg/reactor"
	"github.com/fluxorio/reactor/pkg/snapshot"
	"github.com/fluxorio/reactor/pkg/transport/httpstatus"
	natsfan "github.com/fluxorio/reactor/pkg/transport/nats"
	"github.com/fluxorio/reactor/pkg/transport/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type counters struct {
	Total int `json:"total"`
}

func main() {
	tp, err := tracing.NewStdoutProvider("reactor-example")
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	tracing.SetGlobal(tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx, tp)
	}()

	reducer := func(_ reactor.Context, state any, _ string, message any) any {
		c, _ := state.(counters)
		if n, ok := message.(float64); ok {
			c.Total += int(n)
		} else {
			c.Total++
		}
		return c
	}
	emitter := func(_ reactor.Context, _, newState any) []any {
		return []any{newState}
	}
	initializer := func(reactor.Context) any { return counters{} }

	r := reactor.New(
		reactor.WithName("example"),
		reactor.WithReducer(tracing.TraceReducer("example", tp, reducer)),
		reactor.WithEmitter(tracing.TraceEmitter("example", tp, emitter)),
		reactor.WithInitializer(initializer),
		reactor.WithBackoff(reactor.DefaultBackoff()),
	)

	collector := metrics.New()
	collector.Watch("example", r)
	prometheus.MustRegister(collector)

	if dsn := os.Getenv("REACTOR_SQLITE_DSN"); dsn != "" {
		pool, err := db.NewPool(db.DefaultPoolConfig(dsn, "sqlite3"))
		if err != nil {
			log.Printf("snapshot pool unavailable, skipping: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, ddlErr := pool.Exec(ctx, snapshot.CreateTableDDL("reactor_snapshots"))
			cancel()
			if ddlErr != nil {
				log.Printf("snapshot table migration failed: %v", ddlErr)
			}
			r.AddDestructors(map[string]func(){
				"snapshot": snapshot.Destructor(pool, snapshot.DialectSQLite, "reactor_snapshots", r),
			})
		}
	}

	if natsURL := os.Getenv("REACTOR_NATS_URL"); natsURL != "" {
		nc, err := natsfan.Connect(natsfan.Config{URL: natsURL, Name: "reactor-example"})
		if err != nil {
			log.Printf("nats unavailable, skipping fan-in: %v", err)
		} else {
			subject := natsfan.Subject(natsfan.Config{}, "pub", "example")
			ch, err := natsfan.NewPublisherChannel(nc, subject)
			if err != nil {
				log.Printf("nats subscribe failed: %v", err)
			} else {
				r.AddPublishers(map[string]reactor.Channel{"nats": ch})
			}
		}
	}

	r.Start()

	auth := ws.NewAuthenticator([]byte(envOrDefault("REACTOR_WS_SECRET", "development-only-secret")))
	bridge := ws.NewBridge(r, auth)

	status := httpstatus.New(httpstatus.DefaultConfig(":8090"), r)
	go func() {
		if err := status.ListenAndServe(); err != nil {
			log.Printf("status server stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", bridge)
	mux.Handle("/metrics", promhttp.Handler())

	fmt.Println("example reactor serving /ws and /metrics on :8080, status on :8090")
	if err := http.ListenAndServe(":8080", mux); err != nil {
		log.Fatal(err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
