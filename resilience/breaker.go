package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow when the breaker rejects a call
// without any network attempt.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState enumerates the circuit breaker states.
type BreakerState int

const (
	// StateClosed admits all calls and counts consecutive failures.
	StateClosed BreakerState = iota
	// StateOpen rejects all calls until the reset timeout elapses.
	StateOpen
	// StateHalfOpen admits exactly one probe call.
	StateHalfOpen
)

// String returns the lowercase state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerOptions configures a Breaker.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before admitting a
	// half-open probe.
	ResetTimeout time.Duration
	// now overrides the clock for tests.
	now func() time.Time
}

// BreakerSnapshot is a point-in-time copy of a breaker's observable state.
type BreakerSnapshot struct {
	Service      string       `json:"service"`
	State        BreakerState `json:"state"`
	Failures     int          `json:"failures"`
	LastFailure  time.Time    `json:"last_failure,omitempty"`
	Threshold    int          `json:"threshold"`
	ResetTimeout string       `json:"reset_timeout"`
}

// Breaker is a per-service failure-tracking state machine. All state
// transitions are serialized by an internal mutex; the breaker makes no
// lock-free assumptions.
type Breaker struct {
	service string
	opts    BreakerOptions

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker constructs a breaker for the named service.
func NewBreaker(service string, optFns ...func(o *BreakerOptions)) *Breaker {
	opts := BreakerOptions{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		now:              time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 1
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Breaker{service: service, opts: opts}
}

// WithClock overrides the breaker's clock. Intended for tests.
func WithClock(now func() time.Time) func(o *BreakerOptions) {
	return func(o *BreakerOptions) { o.now = now }
}

// Allow reports whether a call may proceed. In the open state it fails
// immediately with ErrCircuitOpen until the reset timeout elapses, at which
// point the breaker transitions to half-open and admits exactly one probe.
// Callers must pair every admitted call with RecordSuccess or RecordFailure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.opts.now().Sub(b.lastFailure) < b.opts.ResetTimeout {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess notes a successful call. A half-open probe success closes
// the circuit and resets the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// RecordFailure notes a failed call. Reaching the failure threshold in the
// closed state opens the circuit; a half-open probe failure reopens it and
// restarts the reset timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.opts.now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.probing = false
	case StateClosed:
		b.failures++
		if b.failures >= b.opts.FailureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker's observable state.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Service:      b.service,
		State:        b.state,
		Failures:     b.failures,
		LastFailure:  b.lastFailure,
		Threshold:    b.opts.FailureThreshold,
		ResetTimeout: b.opts.ResetTimeout.String(),
	}
}

// reset forces the breaker back to closed. Exposed through Registry.Reset
// for operator action.
func (b *Breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Registry owns the breakers of a process, keyed by service name. It is
// explicitly constructed and injected so tests can create isolated
// instances instead of mutating shared global state.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	optFns   []func(o *BreakerOptions)
}

// NewRegistry creates a registry whose breakers are configured with the
// given defaults.
func NewRegistry(optFns ...func(o *BreakerOptions)) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), optFns: optFns}
}

// For returns the breaker for the named service, creating it on first use.
func (r *Registry) For(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[service]; ok {
		return b
	}
	b := NewBreaker(service, r.optFns...)
	r.breakers[service] = b
	return b
}

// Reset force-closes the named service's breaker. No-op for unknown services.
func (r *Registry) Reset(service string) {
	r.mu.Lock()
	b, ok := r.breakers[service]
	r.mu.Unlock()
	if ok {
		b.reset()
	}
}

// Snapshot returns the state of every registered breaker.
func (r *Registry) Snapshot() map[string]BreakerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]BreakerSnapshot, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Snapshot()
	}
	return out
}
