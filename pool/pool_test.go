package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/teamsmith/resilience"
)

// fakeService backs fake connections with scripted behavior and shared
// counters so tests can observe dials, calls and concurrency.
type fakeService struct {
	mu          sync.Mutex
	dials       int
	calls       int
	inFlight    int32
	maxInFlight int32
	failWith    error         // returned by CallTool while set
	delay       time.Duration // per-call latency
	response    []byte
	tools       []ToolInfo
}

func (f *fakeService) dialer() Dialer {
	return func(ctx context.Context) (Conn, error) {
		f.mu.Lock()
		f.dials++
		f.mu.Unlock()
		return &fakeConn{svc: f}, nil
	}
}

func (f *fakeService) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeConn struct {
	svc    *fakeService
	closed bool
}

func (c *fakeConn) CallTool(ctx context.Context, tool string, args map[string]any) ([]byte, error) {
	cur := atomic.AddInt32(&c.svc.inFlight, 1)
	for {
		prev := atomic.LoadInt32(&c.svc.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&c.svc.maxInFlight, prev, cur) {
			break
		}
	}
	defer atomic.AddInt32(&c.svc.inFlight, -1)

	c.svc.mu.Lock()
	c.svc.calls++
	failWith := c.svc.failWith
	delay := c.svc.delay
	response := c.svc.response
	c.svc.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failWith != nil {
		return nil, failWith
	}
	if response == nil {
		response = []byte(`{"ok":true}`)
	}
	return response, nil
}

func (c *fakeConn) ListTools(ctx context.Context) ([]ToolInfo, error) {
	return c.svc.tools, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, BackoffFactor: 2}
}

func newTestPool(t *testing.T, svc *fakeService, optFns ...func(o *Options)) *Pool {
	t.Helper()
	base := func(o *Options) {
		o.Size = 2
		o.AcquireTimeout = 100 * time.Millisecond
		o.CallTimeout = time.Second
		o.Retry = noRetry()
	}
	p, err := New(svc.dialer(), append([]func(o *Options){base}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPoolCallToolSuccess(t *testing.T) {
	svc := &fakeService{response: []byte(`{"pokemon":"Garchomp"}`)}
	p := newTestPool(t, svc)

	res := p.CallTool(context.Background(), "stats", "get_top_pokemon", map[string]any{"format": "ou"})
	require.True(t, res.OK())
	assert.Equal(t, resilience.FetchSuccess, res.Status)
	assert.JSONEq(t, `{"pokemon":"Garchomp"}`, string(res.Data))
	assert.Equal(t, 1, svc.dials, "connection should be dialed lazily exactly once")
}

func TestPoolNeverExceedsCapacity(t *testing.T) {
	svc := &fakeService{delay: 20 * time.Millisecond}
	p := newTestPool(t, svc, func(o *Options) {
		o.Size = 3
		o.AcquireTimeout = 2 * time.Second
	})

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := p.CallTool(context.Background(), "stats", "calculate_damage", nil)
			assert.True(t, res.OK())
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&svc.maxInFlight), int32(3),
		"pool must never hand out more than Size connections concurrently")
	assert.Equal(t, 12, svc.callCount())
}

func TestPoolReleasesSlotOnFailure(t *testing.T) {
	svc := &fakeService{}
	p := newTestPool(t, svc, func(o *Options) { o.Size = 1 })

	svc.setFailure(errors.New("connection reset"))
	for i := 0; i < 3; i++ {
		res := p.CallTool(context.Background(), "stats", "analyze_matchup", nil)
		require.False(t, res.OK())
	}

	// The single slot must still be usable after repeated failures.
	svc.setFailure(nil)
	p.Registry().Reset("stats")
	res := p.CallTool(context.Background(), "stats", "analyze_matchup", nil)
	assert.True(t, res.OK(), "slot leaked after failed calls")
}

func TestPoolExhaustedTimesOut(t *testing.T) {
	svc := &fakeService{delay: 300 * time.Millisecond}
	p := newTestPool(t, svc, func(o *Options) {
		o.Size = 1
		o.AcquireTimeout = 20 * time.Millisecond
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.CallTool(context.Background(), "stats", "get_speed_benchmarks", nil)
	}()
	time.Sleep(30 * time.Millisecond) // first call is now holding the slot

	res := p.CallTool(context.Background(), "stats", "get_speed_benchmarks", map[string]any{"n": 1})
	require.False(t, res.OK())
	assert.Equal(t, resilience.CategoryTimeout, res.Err.Category)
	assert.ErrorIs(t, res.Err, ErrPoolExhausted)
	<-done
}

func TestPoolCircuitOpenFailsFast(t *testing.T) {
	svc := &fakeService{}
	reg := resilience.NewRegistry(func(o *resilience.BreakerOptions) {
		o.FailureThreshold = 2
		o.ResetTimeout = time.Hour
	})
	p := newTestPool(t, svc, func(o *Options) { o.Registry = reg })

	svc.setFailure(errors.New("connection refused"))
	p.CallTool(context.Background(), "stats", "calculate_damage", nil)
	p.CallTool(context.Background(), "stats", "calculate_damage", nil)
	require.Equal(t, resilience.StateOpen, reg.For("stats").State())

	before := svc.callCount()
	res := p.CallTool(context.Background(), "stats", "calculate_damage", map[string]any{"uncached": true})
	require.False(t, res.OK())
	assert.Equal(t, resilience.CategoryCircuitOpen, res.Err.Category)
	assert.Equal(t, before, svc.callCount(), "open circuit must record zero network attempts")
}

func TestPoolStaleFallback(t *testing.T) {
	svc := &fakeService{response: []byte(`{"speed":405}`)}
	p := newTestPool(t, svc)

	args := map[string]any{"pokemon": "Dragapult"}
	fresh := p.CallTool(context.Background(), "stats", "get_speed_benchmarks", args)
	require.True(t, fresh.OK())

	svc.setFailure(errors.New("status 503 service unavailable"))
	stale := p.CallTool(context.Background(), "stats", "get_speed_benchmarks", args)
	require.True(t, stale.OK(), "server failure with cached data must degrade, not fail")
	assert.True(t, stale.IsStale())
	assert.JSONEq(t, `{"speed":405}`, string(stale.Data))
	require.NotNil(t, stale.Err, "stale result must carry the originating error")
	assert.Equal(t, resilience.CategoryHTTPServer, stale.Err.Category)
}

func TestPoolNoStaleFallbackForClientErrors(t *testing.T) {
	svc := &fakeService{}
	p := newTestPool(t, svc)

	args := map[string]any{"pokemon": "Ting-Lu"}
	require.True(t, p.CallTool(context.Background(), "stats", "analyze_matchup", args).OK())

	svc.setFailure(errors.New("status 400 bad request"))
	res := p.CallTool(context.Background(), "stats", "analyze_matchup", args)
	assert.False(t, res.OK(), "client errors must surface even when cached data exists")
	assert.Equal(t, resilience.CategoryHTTPClient, res.Err.Category)
}

func TestPoolRetriesRecoverableFailures(t *testing.T) {
	svc := &fakeService{}
	var calls int32
	dialer := func(ctx context.Context) (Conn, error) {
		return &scriptedConn{calls: &calls}, nil
	}
	p, err := New(dialer, func(o *Options) {
		o.Size = 1
		o.Retry = resilience.RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, BackoffFactor: 2}
	})
	require.NoError(t, err)
	defer p.Close()

	res := p.CallTool(context.Background(), "stats", "calculate_damage", nil)
	require.True(t, res.OK())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "two transient failures then success")
	_ = svc
}

// scriptedConn fails twice with a recoverable error, then succeeds.
type scriptedConn struct{ calls *int32 }

func (s *scriptedConn) CallTool(ctx context.Context, tool string, args map[string]any) ([]byte, error) {
	n := atomic.AddInt32(s.calls, 1)
	if n <= 2 {
		return nil, errors.New("connection reset")
	}
	return []byte(`{}`), nil
}

func (s *scriptedConn) ListTools(ctx context.Context) ([]ToolInfo, error) { return nil, nil }
func (s *scriptedConn) Close() error                                      { return nil }

func TestPoolCallBatchAggregation(t *testing.T) {
	svc := &fakeService{}
	p := newTestPool(t, svc, func(o *Options) { o.Size = 4 })

	// Warm one cache entry so its later failure degrades to stale instead.
	require.True(t, p.CallTool(context.Background(), "stats", "ok_tool", map[string]any{"k": "warm"}).OK())

	calls := []ToolCall{
		{Tool: "ok_tool", Args: map[string]any{"k": 1}},
		{Tool: "ok_tool", Args: map[string]any{"k": 2}},
		{Tool: "ok_tool", Args: map[string]any{"k": 3}},
		{Tool: "ok_tool", Args: map[string]any{"k": 4}},
		{Tool: "ok_tool", Args: map[string]any{"k": 5}},
	}

	batch := p.CallBatch(context.Background(), "stats", calls)
	assert.True(t, batch.AllSucceeded)
	assert.False(t, batch.PartialSuccess)
	assert.False(t, batch.AllFailed)
	require.Len(t, batch.Results, 5)
	assert.Contains(t, batch.CircuitStates, "stats")

	svc.setFailure(errors.New("status 400 bad request"))
	mixed := p.CallBatch(context.Background(), "stats", calls[:2])
	assert.True(t, mixed.AllFailed)

	svc.setFailure(nil)
}

func TestPoolCallBatchPartialSuccess(t *testing.T) {
	var n int32
	dialer := func(ctx context.Context) (Conn, error) {
		return &alternatingConn{n: &n}, nil
	}
	p, err := New(dialer, func(o *Options) {
		o.Size = 1 // serialize so the alternation is deterministic
		o.Retry = resilience.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, BackoffFactor: 2}
	})
	require.NoError(t, err)
	defer p.Close()

	calls := make([]ToolCall, 5)
	for i := range calls {
		calls[i] = ToolCall{Tool: "t", Args: map[string]any{"i": i}}
	}
	batch := p.CallBatch(context.Background(), "stats", calls)

	assert.True(t, batch.PartialSuccess)
	assert.False(t, batch.AllSucceeded)
	assert.False(t, batch.AllFailed)
	assert.Len(t, batch.Errors(), 2)
}

// alternatingConn succeeds on odd calls and fails with a client error on
// even ones (client errors are not retried, keeping counts deterministic).
type alternatingConn struct{ n *int32 }

func (a *alternatingConn) CallTool(ctx context.Context, tool string, args map[string]any) ([]byte, error) {
	if atomic.AddInt32(a.n, 1)%2 == 0 {
		return nil, errors.New("status 400 bad request")
	}
	return []byte(`{}`), nil
}

func (a *alternatingConn) ListTools(ctx context.Context) ([]ToolInfo, error) { return nil, nil }
func (a *alternatingConn) Close() error                                      { return nil }

func TestPoolListTools(t *testing.T) {
	svc := &fakeService{tools: []ToolInfo{
		{Name: "get_top_pokemon", Description: "usage ranking"},
		{Name: "calculate_damage"},
	}}
	p := newTestPool(t, svc)

	tools, err := p.ListTools(context.Background(), "stats")
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "get_top_pokemon", tools[0].Name)
}

func TestPoolClosedRejectsCalls(t *testing.T) {
	svc := &fakeService{}
	p := newTestPool(t, svc)
	require.NoError(t, p.Close())

	res := p.CallTool(context.Background(), "stats", "t", nil)
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrPoolClosed)
}
