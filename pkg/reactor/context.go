package reactor

import "context"

// Context is the context.Context passed to every reducer, emitter, and
// initializer call. It carries the calling reactor so a function can
// introspect the reactor it is running inside of without reaching for a
// package-level mutable thread-local.
type Context = context.Context

type reactorCtxKey struct{}

// FromContext recovers the reactor that invoked the current reducer,
// emitter, or initializer call. It returns false outside of such a call.
func FromContext(ctx Context) (*Reactor, bool) {
	r, ok := ctx.Value(reactorCtxKey{}).(*Reactor)
	return r, ok
}

func (r *Reactor) withSelf(ctx context.Context) Context {
	return context.WithValue(ctx, reactorCtxKey{}, r)
}
