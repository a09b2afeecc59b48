// Package reactor implements supervised, single-writer state actors with
// dynamic publisher/subscriber fan-in and fan-out. A Reactor folds messages
// from many publisher channels into one authoritative state value and
// broadcasts change-derived messages to many subscriber channels, while a
// supervisor restarts it with exponential backoff if a reducer, emitter, or
// initializer ever panics.
//
// The package has no dependency on any transport, storage, or logging
// backend beyond the reactorlog.Logger interface: wiring a Reactor to
// websockets, message brokers, or databases is entirely the caller's job.
package reactor

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/reactor/pkg/failfast"
	"github.com/fluxorio/reactor/pkg/reactorlog"
)

// Status is the reactor's current lifecycle state, per the
// Created -> Running -> Faulted -> (Rebooting -> Running)* -> Imploded
// machine.
type Status int32

const (
	StatusCreated Status = iota
	StatusRunning
	StatusFaulted
	StatusRebooting
	StatusImploded
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusFaulted:
		return "faulted"
	case StatusRebooting:
		return "rebooting"
	case StatusImploded:
		return "imploded"
	default:
		return "unknown"
	}
}

// Reactor is a supervised, single-writer state container with dynamic fan-in
// and fan-out. The zero value is not usable; construct one with New.
type Reactor struct {
	name string
	log  reactorlog.Logger

	mb *mailbox

	recMu sync.RWMutex
	rec   *record

	status atomic.Int32

	lifecycleMu   sync.Mutex
	pumpCancel    map[string]context.CancelFunc
	watcherCancel map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc

	implodeOnce sync.Once
}

// New constructs a Reactor in the Created state and starts its actor loop.
// The reactor does nothing until Start is called: no publisher pumps run,
// no subscriber catch-up fires.
func New(opts ...Option) *Reactor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	failfast.Err(cfg.validate())

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reactor{
		name:          cfg.name,
		log:           cfg.logger,
		mb:            newMailbox(),
		rec:           newRecord(cfg),
		pumpCancel:    map[string]context.CancelFunc{},
		watcherCancel: map[string]context.CancelFunc{},
		ctx:           ctx,
		cancel:        cancel,
	}
	r.status.Store(int32(StatusCreated))
	go r.loop()
	return r
}

// Name returns the reactor's configured name, empty if none was given.
func (r *Reactor) Name() string { return r.name }

// Status returns the reactor's current lifecycle state.
func (r *Reactor) Status() Status { return Status(r.status.Load()) }

func (r *Reactor) setStatus(s Status) { r.status.Store(int32(s)) }

func (r *Reactor) getRecord() *record {
	r.recMu.RLock()
	defer r.recMu.RUnlock()
	return r.rec
}

func (r *Reactor) setRecord(next *record) {
	r.recMu.Lock()
	r.rec = next
	r.recMu.Unlock()
}

func (r *Reactor) push(kind actionKind, run action) {
	r.mb.push(mailboxItem{kind: kind, run: run})
}

// Start enqueues the action that sets state to initializer() and started to
// true, then blocks until the mailbox drains so the initial subscriber
// emission has completed before Start returns.
func (r *Reactor) Start() *Reactor {
	r.push(kindBlocking, func(rec *record) (*record, error) {
		if rec.started {
			return rec, nil
		}
		state, err := callInitializer(r.withSelf(r.ctx), rec.initializer)
		if err != nil {
			return nil, err
		}
		next := rec.clone()
		next.state = state
		next.started = true
		return next, nil
	})
	return r.Await()
}

// Await blocks the caller until the actor's mailbox reaches zero depth,
// re-checking after every drain since watch reactions may enqueue further
// actions from inside the actor's own processing step.
func (r *Reactor) Await() *Reactor {
	r.mb.awaitQuiescent()
	return r
}

// Update enqueues state <- f(state) on the non-blocking worker.
func (r *Reactor) Update(f func(any) any) *Reactor {
	return r.enqueueUpdate(kindNonBlocking, f)
}

// UpdateBlocking enqueues state <- f(state) on the blocking worker.
func (r *Reactor) UpdateBlocking(f func(any) any) *Reactor {
	return r.enqueueUpdate(kindBlocking, f)
}

func (r *Reactor) enqueueUpdate(kind actionKind, f func(any) any) *Reactor {
	r.push(kind, func(rec *record) (*record, error) {
		newState, err := callUpdate(f, rec.state)
		if err != nil {
			return nil, err
		}
		next := rec.clone()
		next.state = newState
		return next, nil
	})
	return r
}

// Reboot enqueues an action that unconditionally raises, driving the
// reactor through the normal supervisor recovery path and incrementing its
// restart counter.
func (r *Reactor) Reboot() *Reactor {
	r.push(kindBlocking, func(*record) (*record, error) {
		return nil, ErrRebootRequested
	})
	return r
}

// GetState returns a snapshot of the currently-visible state. Callers must
// treat the returned value as immutable.
func (r *Reactor) GetState() any {
	return r.getRecord().state
}

// GetPublisherIdents returns the identifiers of all currently-attached
// publishers, sorted.
func (r *Reactor) GetPublisherIdents() []string {
	rec := r.getRecord()
	ids := make([]string, 0, len(rec.publishers))
	for id := range rec.publishers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetSubscriberIdents returns the identifiers of all currently-attached
// subscribers, sorted.
func (r *Reactor) GetSubscriberIdents() []string {
	rec := r.getRecord()
	ids := make([]string, 0, len(rec.subscribers))
	for id := range rec.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restarts returns the number of reboots the reactor has performed.
func (r *Reactor) Restarts() int {
	return r.getRecord().restarts
}

// SetReducer enqueues replacement of the fold function. A nil fn resets to
// the identity reducer.
func (r *Reactor) SetReducer(fn ReducerFunc) *Reactor {
	if fn == nil {
		fn = identityReducer
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := rec.clone()
		next.reducer = fn
		return next, nil
	})
	return r
}

// SetEmitter enqueues replacement of the change-to-messages function. A nil
// fn resets to the empty emitter.
func (r *Reactor) SetEmitter(fn EmitterFunc) *Reactor {
	if fn == nil {
		fn = emptyEmitter
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := rec.clone()
		next.emitter = fn
		return next, nil
	})
	return r
}

// SetInitializer enqueues replacement of the state constructor. A nil fn
// resets to the empty initializer.
func (r *Reactor) SetInitializer(fn InitializerFunc) *Reactor {
	if fn == nil {
		fn = emptyInitializer
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := rec.clone()
		next.initializer = fn
		return next, nil
	})
	return r
}

// SetBackoff enqueues replacement of the restart-delay sequence. A nil b
// resets to NoBackoff.
func (r *Reactor) SetBackoff(b Backoff) *Reactor {
	if b == nil {
		b = NoBackoff()
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := rec.clone()
		next.backoff = b
		return next, nil
	})
	return r
}

// AddPublishers enqueues insertion of the given publisher channels, keyed
// by opaque identifier. Existing identifiers are overwritten.
func (r *Reactor) AddPublishers(publishers map[string]Channel) *Reactor {
	if len(publishers) == 0 {
		return r
	}
	snapshot := make(map[string]Channel, len(publishers))
	for id, ch := range publishers {
		snapshot[id] = ch
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		merged := copyChannelMap(rec.publishers)
		for id, ch := range snapshot {
			merged[id] = ch
		}
		return rec.withPublishers(merged), nil
	})
	return r
}

// RemovePublishers enqueues removal of the named publishers. Once the
// reactor is started, the watch dispatcher closes their channels when the
// removal is accepted; a removal before Start leaves the channels open.
func (r *Reactor) RemovePublishers(ids ...string) *Reactor {
	if len(ids) == 0 {
		return r
	}
	drop := idSet(ids)
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := map[string]Channel{}
		for id, ch := range rec.publishers {
			if _, remove := drop[id]; !remove {
				next[id] = ch
			}
		}
		return rec.withPublishers(next), nil
	})
	return r
}

// AddSubscribers enqueues insertion of the given subscriber channels, keyed
// by opaque identifier. Existing identifiers are overwritten.
func (r *Reactor) AddSubscribers(subscribers map[string]Channel) *Reactor {
	if len(subscribers) == 0 {
		return r
	}
	snapshot := make(map[string]Channel, len(subscribers))
	for id, ch := range subscribers {
		snapshot[id] = ch
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		merged := copyChannelMap(rec.subscribers)
		for id, ch := range snapshot {
			merged[id] = ch
		}
		return rec.withSubscribers(merged), nil
	})
	return r
}

// RemoveSubscribers enqueues removal of the named subscribers.
func (r *Reactor) RemoveSubscribers(ids ...string) *Reactor {
	if len(ids) == 0 {
		return r
	}
	drop := idSet(ids)
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := map[string]Channel{}
		for id, ch := range rec.subscribers {
			if _, remove := drop[id]; !remove {
				next[id] = ch
			}
		}
		return rec.withSubscribers(next), nil
	})
	return r
}

// AddDestructors enqueues registration of zero-argument teardown functions,
// invoked in identifier order at implosion.
func (r *Reactor) AddDestructors(destructors map[string]func()) *Reactor {
	if len(destructors) == 0 {
		return r
	}
	snapshot := make(map[string]func(), len(destructors))
	for id, fn := range destructors {
		snapshot[id] = fn
	}
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		merged := copyDestructorMap(rec.destructors)
		for id, fn := range snapshot {
			merged[id] = fn
		}
		return rec.withDestructors(merged), nil
	})
	return r
}

// RemoveDestructors enqueues removal of the named destructors without
// invoking them.
func (r *Reactor) RemoveDestructors(ids ...string) *Reactor {
	if len(ids) == 0 {
		return r
	}
	drop := idSet(ids)
	r.push(kindNonBlocking, func(rec *record) (*record, error) {
		next := map[string]func(){}
		for id, fn := range rec.destructors {
			if _, remove := drop[id]; !remove {
				next[id] = fn
			}
		}
		return rec.withDestructors(next), nil
	})
	return r
}

// loop is the single-writer state actor: it pulls one item at a time from
// the mailbox, applies it, and runs the watch dispatcher over the
// resulting (old, next) pair. Apart from the reset record supervise
// installs on reboot, it is the only caller of setRecord.
func (r *Reactor) loop() {
	for {
		item, ok := r.mb.pop()
		if !ok {
			return
		}
		old := r.getRecord()
		next, err := item.run(old)
		if err != nil {
			r.mb.done()
			r.fault(err)
			continue
		}
		r.setRecord(next)
		r.dispatch(old, next)
		if next.started && r.Status() != StatusImploded {
			r.setStatus(StatusRunning)
		}
		r.mb.done()
	}
}

// fault transitions the reactor to Faulted, discards every action queued
// for the crashed incarnation, and hands off to the supervisor.
func (r *Reactor) fault(cause error) {
	if r.Status() == StatusImploded {
		return
	}
	r.log.Errorf("reactor %s: action failed: %v", r.label(), cause)
	r.setStatus(StatusFaulted)
	r.mb.discard()
	go r.supervise()
}

// supervise implements the backoff-driven reboot procedure. It runs on its
// own goroutine, independent of the actor loop, so the actor's mailbox
// stays free to accept the eventual re-initialization action.
func (r *Reactor) supervise() {
	if r.Status() == StatusImploded {
		return
	}
	r.setStatus(StatusRebooting)

	cur := r.getRecord()
	delay, rest, ok := cur.backoff.Next()
	if !ok {
		r.log.Warnf("reactor %s: %v, imploding", r.label(), ErrBackoffExhausted)
		r.implode(cur)
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.ctx.Done():
		return
	}

	before := r.getRecord()
	reset := before.clone()
	reset.state = nil
	reset.restarts = before.restarts + 1
	reset.backoff = rest
	r.setRecord(reset)
	r.mb.discard()

	r.log.Infof("reactor %s: rebooting (restart #%d)", r.label(), reset.restarts)
	r.push(kindBlocking, func(rec *record) (*record, error) {
		state, err := callInitializer(r.withSelf(r.ctx), rec.initializer)
		if err != nil {
			return nil, err
		}
		next := rec.clone()
		next.state = state
		next.started = true
		return next, nil
	})
}

// implode runs the irreversible teardown sequence exactly once: close every
// subscriber channel, close every publisher channel, invoke every
// destructor in ascending identifier order, swallowing per-step failures.
func (r *Reactor) implode(rec *record) {
	r.implodeOnce.Do(func() {
		r.setStatus(StatusImploded)

		r.lifecycleMu.Lock()
		for id, cancel := range r.pumpCancel {
			cancel()
			delete(r.pumpCancel, id)
		}
		for id, cancel := range r.watcherCancel {
			cancel()
			delete(r.watcherCancel, id)
		}
		r.lifecycleMu.Unlock()

		for _, ch := range rec.subscribers {
			ch.Close()
		}
		for _, ch := range rec.publishers {
			ch.Close()
		}

		ids := make([]string, 0, len(rec.destructors))
		for id := range rec.destructors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			r.runDestructor(id, rec.destructors[id])
		}

		r.mb.close()
		r.cancel()
	})
}

func (r *Reactor) runDestructor(id string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Errorf("reactor %s: destructor %q panicked: %v", r.label(), id, p)
		}
	}()
	fn()
}

func (r *Reactor) label() string {
	if r.name == "" {
		return "<unnamed>"
	}
	return r.name
}

func mapDiff(a, b map[string]Channel) map[string]Channel {
	out := map[string]Channel{}
	for id, ch := range a {
		if _, ok := b[id]; !ok {
			out[id] = ch
		}
	}
	return out
}
