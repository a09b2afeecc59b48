package reactor

// ReducerFunc folds an inbound publisher message into a new state.
type ReducerFunc func(ctx Context, state any, publisherID string, message any) any

// EmitterFunc computes the ordered sequence of messages a state transition
// produces for subscribers. It must be pure: no I/O, no mutation of either
// state value.
type EmitterFunc func(ctx Context, oldState, newState any) []any

// InitializerFunc constructs a fresh state, used on start and after every
// reboot.
type InitializerFunc func(ctx Context) any

func identityReducer(_ Context, state any, _ string, _ any) any { return state }

func emptyEmitter(_ Context, _, _ any) []any { return nil }

func emptyInitializer(_ Context) any { return nil }

// record is the sole mutable entity of a reactor, owned exclusively by the
// state actor. Every field mutation produces a new *record rather than
// mutating an existing one in place, so a reader holding an older pointer
// never observes a partial mutation (invariant: all reads see a value
// produced by a completed action).
type record struct {
	state       any
	started     bool
	imploded    bool
	publishers  map[string]Channel
	subscribers map[string]Channel
	destructors map[string]func()
	backoff     Backoff
	restarts    int
	reducer     ReducerFunc
	emitter     EmitterFunc
	initializer InitializerFunc
}

func newRecord(cfg *Config) *record {
	return &record{
		state:       nil,
		started:     false,
		publishers:  map[string]Channel{},
		subscribers: map[string]Channel{},
		destructors: map[string]func(){},
		backoff:     cfg.backoff,
		restarts:    0,
		reducer:     cfg.reducer,
		emitter:     cfg.emitter,
		initializer: cfg.initializer,
	}
}

// clone returns a shallow copy of r. Map fields are NOT copied here; callers
// that intend to mutate a map field must call one of the with* helpers below
// so the original record's map is left untouched for any reader still
// holding it.
func (r *record) clone() *record {
	cp := *r
	return &cp
}

func (r *record) withPublishers(next map[string]Channel) *record {
	cp := r.clone()
	cp.publishers = next
	return cp
}

func (r *record) withSubscribers(next map[string]Channel) *record {
	cp := r.clone()
	cp.subscribers = next
	return cp
}

func (r *record) withDestructors(next map[string]func()) *record {
	cp := r.clone()
	cp.destructors = next
	return cp
}

func copyChannelMap(m map[string]Channel) map[string]Channel {
	cp := make(map[string]Channel, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func copyDestructorMap(m map[string]func()) map[string]func() {
	cp := make(map[string]func(), len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func idSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
