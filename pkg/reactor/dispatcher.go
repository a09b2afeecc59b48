package reactor

// dispatch observes (old, next) after a mutation the actor loop just
// accepted and fires, in order, every reaction whose predicate holds. The
// start transition and an ordinary state change are mutually exclusive for
// a single mutation: a reactor cannot both start and separately receive a
// STATE_CHANGE broadcast for the same accepted action, since the start
// transition's own catch-up emission already covers it.
func (r *Reactor) dispatch(old, next *record) {
	startTransition := !old.started && next.started
	running := next.started

	// 1. PUBLISHERS_ON_START
	if startTransition {
		for id, ch := range next.publishers {
			r.startPump(id, ch)
		}
	}

	// 2. PUBLISHERS_ON_CHANGE
	if running {
		removed := mapDiff(old.publishers, next.publishers)
		added := mapDiff(next.publishers, old.publishers)
		for id := range removed {
			r.stopPump(id)
		}
		for _, ch := range removed {
			ch.Close()
		}
		for id, ch := range added {
			r.startPump(id, ch)
		}
	}

	// 3. SUBSCRIBERS_ON_START
	if startTransition {
		for id, ch := range next.subscribers {
			r.startSubWatcher(id, ch)
		}
		if len(next.subscribers) > 0 {
			r.emitAndBroadcast(next, nil, next.state, next.subscribers)
		}
		return
	}

	// 4. SUBSCRIBERS_ON_CHANGE
	if running {
		removedSubs := mapDiff(old.subscribers, next.subscribers)
		addedSubs := mapDiff(next.subscribers, old.subscribers)
		for id := range removedSubs {
			r.stopSubWatcher(id)
		}
		for _, ch := range removedSubs {
			ch.Close()
		}
		if len(addedSubs) > 0 {
			for id, ch := range addedSubs {
				r.startSubWatcher(id, ch)
			}
			r.emitAndBroadcast(next, nil, next.state, addedSubs)
		}

		// 5. ALL_SUBSCRIBERS_REMOVED
		if len(next.subscribers) == 0 && len(old.subscribers) > 0 {
			r.implode(next)
			return
		}
	}

	// 6. STATE_CHANGE
	if running && len(next.subscribers) > 0 && !statesEqual(old.state, next.state) {
		r.emitAndBroadcast(next, old.state, next.state, next.subscribers)
	}
}

// statesEqual compares two opaque state values with ==. Most application
// states are maps or slices, which panic on ==; in that case the dispatcher
// treats them as unequal (always changed) rather than skipping an emission,
// which is the safe default.
func statesEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

// emitAndBroadcast runs the emitter and, if it succeeds, broadcasts the
// resulting messages to the given subscriber set. An emitter panic is
// treated as an actor-level fault, surfaced via the same fault path a
// panicking reducer takes, by re-enqueuing a failing action onto the
// mailbox rather than crashing the dispatch call in place.
func (r *Reactor) emitAndBroadcast(rec *record, oldState, newState any, subs map[string]Channel) {
	msgs, err := callEmitter(r.withSelf(r.ctx), rec.emitter, oldState, newState)
	if err != nil {
		r.log.Errorf("reactor %s: emitter failed: %v", r.label(), err)
		r.push(kindNonBlocking, func(*record) (*record, error) {
			return nil, err
		})
		return
	}
	r.broadcast(subs, msgs)
}
