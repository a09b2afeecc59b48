package ws

import (
	"fmt"
	"net/http"

	"github.com/fluxorio/reactor/pkg/reactor"
	"github.com/fluxorio/reactor/pkg/reactorlog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Bridge upgrades incoming HTTP connections to WebSocket and attaches each
// one to a Reactor as both a publisher and a subscriber, keyed by a
// generated connection identifier. It is the reactor-domain analogue of the
// source's EventBus/WebSocket bridge.
type Bridge struct {
	target   *reactor.Reactor
	upgrader websocket.Upgrader
	auth     *Authenticator
	log      reactorlog.Logger
}

// NewBridge returns a Bridge that attaches connections to target. auth may
// be nil to skip authentication (development only).
func NewBridge(target *reactor.Reactor, auth *Authenticator) *Bridge {
	if target == nil {
		panic("ws: target reactor must not be nil")
	}
	return &Bridge{
		target: target,
		auth:   auth,
		log:    reactorlog.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler: it authenticates (if configured),
// upgrades the connection, and attaches it to the target reactor until the
// client disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.auth != nil {
		if _, err := b.auth.VerifyRequest(r); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":"unauthorized: %s"}`, err), http.StatusUnauthorized)
			return
		}
	}

	raw, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Errorf("ws: upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	conn := Wrap(raw)

	b.target.AddPublishers(map[string]reactor.Channel{id: conn})
	b.target.AddSubscribers(map[string]reactor.Channel{id: conn})

	go func() {
		<-conn.Closed()
		b.target.RemovePublishers(id)
		b.target.RemoveSubscribers(id)
	}()
}
