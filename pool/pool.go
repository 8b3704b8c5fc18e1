package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/teamsmith/logging"
	"github.com/hupe1980/teamsmith/resilience"
)

// ErrPoolExhausted is returned when no connection becomes free within the
// acquire timeout.
var ErrPoolExhausted = errors.New("connection pool exhausted")

// ErrPoolClosed is returned for calls made after Close.
var ErrPoolClosed = errors.New("connection pool is closed")

// ToolCall names one tool invocation within a batch.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Options configures a Pool.
type Options struct {
	// Size is the maximum number of live connections.
	Size int
	// AcquireTimeout bounds the wait for a free connection.
	AcquireTimeout time.Duration
	// CallTimeout bounds each individual tool call.
	CallTimeout time.Duration
	// Retry bounds the retry loop for recoverable failures.
	Retry resilience.RetryConfig
	// Registry supplies per-service circuit breakers. A private registry is
	// created when nil.
	Registry *resilience.Registry
	// CacheSize bounds the stale-result cache used for degraded fallbacks.
	CacheSize int
	// Logger receives pool diagnostics.
	Logger logging.Logger
}

// slot is one pool position. The connection is dialed lazily and discarded
// after transport-level failures so the next caller redials.
type slot struct {
	conn Conn
}

func (s *slot) get(ctx context.Context, dial Dialer) (Conn, error) {
	if s.conn == nil {
		conn, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}
	return s.conn, nil
}

func (s *slot) discard() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Pool is a bounded, breaker-guarded connection pool to the external tool
// service. All methods are safe for concurrent use.
type Pool struct {
	dial     Dialer
	slots    chan *slot
	registry *resilience.Registry
	cache    *lru.Cache[string, []byte]
	opts     Options
	logger   logging.Logger

	mu     sync.Mutex
	closed bool
}

// New constructs a Pool with optional overrides.
func New(dial Dialer, optFns ...func(o *Options)) (*Pool, error) {
	opts := Options{
		Size:           4,
		AcquireTimeout: 5 * time.Second,
		CallTimeout:    30 * time.Second,
		Retry:          resilience.DefaultRetryConfig(),
		CacheSize:      256,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", opts.Size)
	}
	if opts.Registry == nil {
		opts.Registry = resilience.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	cache, err := lru.New[string, []byte](max(opts.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create stale cache: %w", err)
	}

	slots := make(chan *slot, opts.Size)
	for i := 0; i < opts.Size; i++ {
		slots <- &slot{}
	}

	return &Pool{
		dial:     dial,
		slots:    slots,
		registry: opts.Registry,
		cache:    cache,
		opts:     opts,
		logger:   opts.Logger,
	}, nil
}

// Registry exposes the breaker registry for observability and operator
// resets.
func (p *Pool) Registry() *resilience.Registry { return p.registry }

// CallTool invokes a named tool on a service. The outcome is always a typed
// FetchResult: fresh data, stale cached data with the originating error
// attached, or a categorized failure. Raw errors never escape.
func (p *Pool) CallTool(ctx context.Context, service, tool string, args map[string]any) resilience.FetchResult {
	breaker := p.registry.For(service)
	key := cacheKey(service, tool, args)

	start := time.Now()
	data, svcErr := resilience.Retry(ctx, p.opts.Retry, func() ([]byte, *resilience.ServiceError) {
		return p.attempt(ctx, breaker, service, tool, args)
	})

	if svcErr == nil {
		p.cache.Add(key, data)
		p.logger.Debug("pool.call.success", "service", service, "tool", tool, "duration_ms", time.Since(start).Milliseconds())
		return resilience.Success(data)
	}

	if staleEligible(svcErr.Category) {
		if cached, ok := p.cache.Get(key); ok {
			p.logger.Warn("pool.call.stale_fallback", "service", service, "tool", tool, "category", string(svcErr.Category))
			return resilience.StaleFallback(cached, svcErr)
		}
	}

	p.logger.Warn("pool.call.failure", "service", service, "tool", tool, "category", string(svcErr.Category), "error", svcErr.Message)
	return resilience.Failure(svcErr)
}

// attempt performs one guarded call: acquire a slot, pass the breaker, dial
// if needed, execute. The slot is released on every exit path.
func (p *Pool) attempt(ctx context.Context, breaker *resilience.Breaker, service, tool string, args map[string]any) ([]byte, *resilience.ServiceError) {
	s, err := p.acquire(ctx)
	if err != nil {
		// A local acquisition failure says nothing about service health, so
		// the breaker is not touched.
		return nil, resilience.NewServiceError(service, tool, resilience.CategoryTimeout, err)
	}
	defer p.release(s)

	if err := breaker.Allow(); err != nil {
		return nil, resilience.NewServiceError(service, tool, resilience.CategoryCircuitOpen, err)
	}

	conn, err := s.get(ctx, p.dial)
	if err != nil {
		breaker.RecordFailure()
		return nil, resilience.NewServiceError(service, tool, classify(err), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	data, err := conn.CallTool(callCtx, tool, args)
	if err != nil {
		category := classify(err)
		breaker.RecordFailure()
		if category == resilience.CategoryTimeout || category == resilience.CategoryNetwork {
			s.discard()
		}
		return nil, resilience.NewServiceError(service, tool, category, err)
	}

	breaker.RecordSuccess()
	return data, nil
}

// CallBatch executes several tool calls against one service, interleaving
// them across pool connections. The aggregate distinguishes all-succeeded,
// partial-success and all-failed, and carries a circuit state snapshot.
func (p *Pool) CallBatch(ctx context.Context, service string, calls []ToolCall) resilience.BatchFetchResult {
	results := make([]resilience.FetchResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Size)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = p.CallTool(gctx, service, call.Tool, call.Args)
			return nil
		})
	}
	_ = g.Wait()

	return resilience.NewBatchFetchResult(results, p.registry.Snapshot())
}

// ListTools returns the tools advertised by the named service, guarded by
// its breaker like any other call.
func (p *Pool) ListTools(ctx context.Context, service string) ([]ToolInfo, error) {
	breaker := p.registry.For(service)

	s, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(s)

	if err := breaker.Allow(); err != nil {
		return nil, resilience.NewServiceError(service, "", resilience.CategoryCircuitOpen, err)
	}

	conn, err := s.get(ctx, p.dial)
	if err != nil {
		breaker.RecordFailure()
		return nil, resilience.NewServiceError(service, "", classify(err), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	infos, err := conn.ListTools(callCtx)
	if err != nil {
		breaker.RecordFailure()
		s.discard()
		return nil, resilience.NewServiceError(service, "", classify(err), err)
	}
	breaker.RecordSuccess()
	return infos, nil
}

// Close shuts the pool. Connections currently checked out are closed when
// released; idle connections are closed immediately.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case s := <-p.slots:
			s.discard()
		default:
			return nil
		}
	}
}

func (p *Pool) acquire(ctx context.Context) (*slot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case s := <-p.slots:
		return s, nil
	default:
	}

	timer := time.NewTimer(p.opts.AcquireTimeout)
	defer timer.Stop()

	select {
	case s := <-p.slots:
		return s, nil
	case <-timer.C:
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(s *slot) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		s.discard()
		return
	}
	p.slots <- s
}

// staleEligible reports whether a failure category may degrade to cached
// data. Client errors and parse failures must surface: the request itself
// is wrong.
func staleEligible(c resilience.ErrorCategory) bool {
	switch c {
	case resilience.CategoryCircuitOpen, resilience.CategoryHTTPServer, resilience.CategoryTimeout, resilience.CategoryNetwork:
		return true
	default:
		return false
	}
}

// cacheKey builds a deterministic key; encoding/json sorts map keys.
func cacheKey(service, tool string, args map[string]any) string {
	raw, _ := json.Marshal(args)
	return service + "/" + tool + "?" + string(raw)
}
