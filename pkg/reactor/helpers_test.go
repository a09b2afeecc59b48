package reactor

import (
	"context"
	"time"

	"github.com/fluxorio/reactor/pkg/reactorlog"
)

func bgctx() context.Context { return context.Background() }

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func discardLog() reactorlog.Logger { return reactorlog.Discard() }
