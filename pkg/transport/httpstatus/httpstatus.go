// Package httpstatus exposes a read-only fasthttp endpoint reporting a
// reactor's lifecycle status, restart count, and attached publisher/
// subscriber identifiers — useful for liveness probes and operator
// dashboards without giving callers any way to mutate the reactor over
// HTTP.
package httpstatus

import (
	"encoding/json"
	"time"

	"github.com/fluxorio/reactor/pkg/reactor"
	"github.com/valyala/fasthttp"
)

// Config configures the status server, grounded on the source's fasthttp
// server defaults but trimmed to what a read-only status endpoint needs.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sane defaults for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// snapshot is the JSON body served for a reactor.
type snapshot struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Restarts    int      `json:"restarts"`
	Publishers  []string `json:"publishers"`
	Subscribers []string `json:"subscribers"`
}

// Server serves a single reactor's status at GET /status.
type Server struct {
	cfg    Config
	target *reactor.Reactor
	srv    *fasthttp.Server
}

// New returns a Server for target. Call ListenAndServe to start it.
func New(cfg Config, target *reactor.Reactor) *Server {
	if target == nil {
		panic("httpstatus: target reactor must not be nil")
	}
	s := &Server{cfg: cfg, target: target}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	if string(ctx.Path()) != "/status" {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	body := snapshot{
		Name:        s.target.Name(),
		Status:      s.target.Status().String(),
		Restarts:    s.target.Restarts(),
		Publishers:  s.target.GetPublisherIdents(),
		Subscribers: s.target.GetSubscriberIdents(),
	}
	ctx.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(body)
}

// ListenAndServe blocks serving the status endpoint until the listener
// fails or is shut down.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe(s.cfg.Addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}
