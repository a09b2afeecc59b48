package reactor

// callReducer invokes a ReducerFunc, converting any panic into an error so
// a misbehaving caller-supplied reducer faults the actor instead of
// crashing the process.
func callReducer(ctx Context, fn ReducerFunc, state any, publisherID string, message any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &actionPanic{recovered: p}
		}
	}()
	out = fn(ctx, state, publisherID, message)
	return
}

// callEmitter invokes an EmitterFunc under the same panic-to-error
// discipline as callReducer. A panicking emitter is treated as an
// actor-level fault identical to a panicking reducer.
func callEmitter(ctx Context, fn EmitterFunc, oldState, newState any) (out []any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &actionPanic{recovered: p}
		}
	}()
	out = fn(ctx, oldState, newState)
	return
}

// callInitializer invokes an InitializerFunc under the same discipline.
func callInitializer(ctx Context, fn InitializerFunc) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &actionPanic{recovered: p}
		}
	}()
	out = fn(ctx)
	return
}

// callUpdate invokes a caller-supplied state transform for Update /
// UpdateBlocking.
func callUpdate(fn func(any) any, state any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &actionPanic{recovered: p}
		}
	}()
	out = fn(state)
	return
}
