package reactor

import "context"

// broadcast writes msgs, in order, to every channel in subs. Each
// subscriber is written to sequentially on the calling (actor) goroutine:
// a full subscriber channel blocks the emission, which is the intended
// backpressure policy. A channel closed mid-broadcast is swallowed; its
// close-watcher will (or already has) issued the matching removal.
func (r *Reactor) broadcast(subs map[string]Channel, msgs []any) {
	if len(msgs) == 0 {
		return
	}
	for _, ch := range subs {
		for _, msg := range msgs {
			if err := ch.Send(r.ctx, msg); err != nil {
				break
			}
		}
	}
}

// startSubWatcher launches the task that detects an externally-closed
// subscriber channel and issues the matching removal. Unlike publisher
// pumps, subscriber channels are not continuously read by reactor code, so
// this dedicated watcher is what the source implements as a
// close-observable wrapper.
func (r *Reactor) startSubWatcher(id string, ch Channel) {
	r.lifecycleMu.Lock()
	if _, exists := r.watcherCancel[id]; exists {
		r.lifecycleMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.watcherCancel[id] = cancel
	r.lifecycleMu.Unlock()

	go r.runSubWatcher(ctx, id, ch)
}

func (r *Reactor) stopSubWatcher(id string) {
	r.lifecycleMu.Lock()
	if cancel, ok := r.watcherCancel[id]; ok {
		cancel()
		delete(r.watcherCancel, id)
	}
	r.lifecycleMu.Unlock()
}

func (r *Reactor) runSubWatcher(ctx context.Context, id string, ch Channel) {
	select {
	case <-ch.Closed():
		r.RemoveSubscribers(id)
	case <-ctx.Done():
	}
}
