package reactor

import (
	"context"
	"errors"
)

// startPump launches the task that forwards messages from one attached
// publisher channel into reduce actions. It is idempotent: a publisher
// that already has a running pump is left alone. Pumps started here are
// not restarted on reboot; they live as long as the publisher entry lives
// in the record, independent of actor restarts, per the source's own
// behavior.
func (r *Reactor) startPump(id string, ch Channel) {
	r.lifecycleMu.Lock()
	if _, exists := r.pumpCancel[id]; exists {
		r.lifecycleMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.pumpCancel[id] = cancel
	r.lifecycleMu.Unlock()

	go r.runPump(ctx, id, ch)
}

func (r *Reactor) stopPump(id string) {
	r.lifecycleMu.Lock()
	if cancel, ok := r.pumpCancel[id]; ok {
		cancel()
		delete(r.pumpCancel, id)
	}
	r.lifecycleMu.Unlock()
}

// runPump is the publisher pump body. It also acts as its own
// close-watcher: since it already blocks on Receive, an externally-closed
// channel surfaces as ErrChannelClosed at the same suspension point a
// message would, with no separate goroutine required.
func (r *Reactor) runPump(ctx context.Context, id string, ch Channel) {
	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrChannelClosed) {
				r.RemovePublishers(id)
			}
			return
		}
		r.enqueueReduce(id, msg)
	}
}

func (r *Reactor) enqueueReduce(publisherID string, message any) {
	r.push(kindBlocking, func(rec *record) (*record, error) {
		newState, err := callReducer(r.withSelf(r.ctx), rec.reducer, rec.state, publisherID, message)
		if err != nil {
			return nil, err
		}
		next := rec.clone()
		next.state = newState
		return next, nil
	})
}
