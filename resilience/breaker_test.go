package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for breaker timeout tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, reset time.Duration, clock *fakeClock) *Breaker {
	return NewBreaker("stats", func(o *BreakerOptions) {
		o.FailureThreshold = threshold
		o.ResetTimeout = reset
		o.now = clock.Now
	})
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := newTestBreaker(5, time.Minute, newFakeClock())

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newTestBreaker(3, time.Minute, newFakeClock())

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(1, 30*time.Second, clock)

	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	// Before the reset timeout: still rejecting.
	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// After the timeout: exactly one probe is admitted.
	clock.Advance(2 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen, "second call during probe must be rejected")

	// Probe success closes the circuit and resets the counter.
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Snapshot().Failures)
	assert.NoError(t, b.Allow())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(1, 30*time.Second, clock)

	require.NoError(t, b.Allow())
	b.RecordFailure()
	clock.Advance(31 * time.Second)
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	// Probe failure returns to open and restarts the timeout.
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	clock.Advance(31 * time.Second)
	assert.NoError(t, b.Allow(), "timeout must restart after probe failure")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(3, time.Minute, newFakeClock())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures must not open the circuit")
}

func TestRegistryIsolatesServices(t *testing.T) {
	reg := NewRegistry(func(o *BreakerOptions) { o.FailureThreshold = 1 })

	stats := reg.For("stats")
	replay := reg.For("replay")
	require.NotSame(t, stats, replay)
	assert.Same(t, stats, reg.For("stats"), "same service must return the same breaker")

	stats.RecordFailure()
	assert.Equal(t, StateOpen, stats.State())
	assert.Equal(t, StateClosed, replay.State())

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, StateOpen, snap["stats"].State)

	reg.Reset("stats")
	assert.Equal(t, StateClosed, stats.State())
	reg.Reset("unknown") // no-op
}

func TestRegistryConcurrentFor(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	breakers := make([]*Breaker, 16)
	for i := range breakers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			breakers[i] = reg.For("stats")
		}(i)
	}
	wg.Wait()
	for _, b := range breakers[1:] {
		assert.Same(t, breakers[0], b)
	}
}
