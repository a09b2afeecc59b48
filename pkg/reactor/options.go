package reactor

import (
	"fmt"

	"github.com/fluxorio/reactor/pkg/reactorlog"
)

// Validator runs a structural check against an assembled Config before New
// returns a Reactor. Validators only see the *Config, not any live record,
// so they can only check static construction-time invariants.
type Validator interface {
	Validate(*Config) error
}

// ValidatorFunc adapts a function to a Validator.
type ValidatorFunc func(*Config) error

func (f ValidatorFunc) Validate(c *Config) error { return f(c) }

// nonNegativeBackoff rejects a backoff whose first delay is already
// negative — the one static property a Backoff exposes before any reboot
// actually happens. Installed by default so a caller passing, say,
// FixedBackoff(-time.Second) fails at New rather than at the first fault.
var nonNegativeBackoff = ValidatorFunc(func(c *Config) error {
	if c.backoff == nil {
		return nil
	}
	if delay, _, ok := c.backoff.Next(); ok && delay < 0 {
		return fmt.Errorf("backoff's first delay %s is negative", delay)
	}
	return nil
})

// Config holds everything New needs to build a Reactor. It is assembled by
// applying a caller's Options over a set of defaults and is never retained
// past construction.
type Config struct {
	name        string
	reducer     ReducerFunc
	emitter     EmitterFunc
	initializer InitializerFunc
	backoff     Backoff
	logger      reactorlog.Logger
	validators  []Validator
}

// Option configures a Reactor at construction time.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		name:        "",
		reducer:     identityReducer,
		emitter:     emptyEmitter,
		initializer: emptyInitializer,
		backoff:     DefaultBackoff(),
		logger:      reactorlog.New(),
		validators:  []Validator{nonNegativeBackoff},
	}
}

// WithLogger overrides the Logger the reactor reports faults, reboots, and
// implosions to. The default logs to the standard library's log package.
func WithLogger(l reactorlog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithName sets a human-readable name surfaced in log lines and by Name.
// Unnamed reactors log as "<unnamed>".
func WithName(name string) Option {
	return func(c *Config) { c.name = name }
}

// WithReducer installs the function used to fold inbound publisher
// messages into state. The default reducer is the identity: publishers are
// inert until a reducer is set.
func WithReducer(fn ReducerFunc) Option {
	return func(c *Config) {
		if fn != nil {
			c.reducer = fn
		}
	}
}

// WithEmitter installs the function used to compute the subscriber
// broadcast for a state transition. The default emitter emits nothing.
func WithEmitter(fn EmitterFunc) Option {
	return func(c *Config) {
		if fn != nil {
			c.emitter = fn
		}
	}
}

// WithInitializer installs the function used to construct state on start
// and after every reboot. The default initializer produces a nil state.
func WithInitializer(fn InitializerFunc) Option {
	return func(c *Config) {
		if fn != nil {
			c.initializer = fn
		}
	}
}

// WithBackoff overrides the restart delay sequence consulted on every
// fault. The default is DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(c *Config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithValidator registers an additional Validator run against the
// assembled Config before New returns a Reactor, alongside the built-in
// checks (non-nil fields, non-negative backoff).
func WithValidator(v Validator) Option {
	return func(c *Config) { c.validators = append(c.validators, v) }
}

func (c *Config) validate() error {
	for _, v := range c.validators {
		if err := v.Validate(c); err != nil {
			return fmt.Errorf("reactor: invalid config: %w", err)
		}
	}
	if c.reducer == nil || c.emitter == nil || c.initializer == nil || c.backoff == nil {
		return fmt.Errorf("reactor: invalid config: reducer, emitter, initializer, and backoff must be non-nil")
	}
	return nil
}
