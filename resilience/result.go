package resilience

import (
	"encoding/json"
	"fmt"
)

// ErrorCategory classifies a failed external call. Only recoverable
// categories participate in retry logic.
type ErrorCategory string

const (
	// CategoryTimeout covers deadline exceeded and acquisition timeouts.
	CategoryTimeout ErrorCategory = "TIMEOUT"
	// CategoryNetwork covers connection level failures.
	CategoryNetwork ErrorCategory = "NETWORK"
	// CategoryHTTPClient covers 4xx-style failures caused by the request.
	CategoryHTTPClient ErrorCategory = "HTTP_CLIENT_ERROR"
	// CategoryHTTPServer covers 5xx-style failures on the remote side.
	CategoryHTTPServer ErrorCategory = "HTTP_SERVER_ERROR"
	// CategoryCircuitOpen marks calls rejected by an open breaker.
	CategoryCircuitOpen ErrorCategory = "CIRCUIT_OPEN"
	// CategoryParse covers malformed responses.
	CategoryParse ErrorCategory = "PARSE_ERROR"
)

// Recoverable reports whether failures of this category may be retried.
// Client errors and parse failures never are: retrying an invalid request
// or garbage payload cannot succeed. Circuit-open is handled by the breaker
// timeout, not the retry loop.
func (c ErrorCategory) Recoverable() bool {
	switch c {
	case CategoryTimeout, CategoryNetwork, CategoryHTTPServer:
		return true
	default:
		return false
	}
}

// ServiceError describes the outcome of a failed guarded call.
type ServiceError struct {
	Service  string        `json:"service"`
	Tool     string        `json:"tool,omitempty"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Err      error         `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s/%s: %s", e.Category, e.Service, e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Category, e.Service, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError builds a categorized service error wrapping err.
func NewServiceError(service, tool string, category ErrorCategory, err error) *ServiceError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ServiceError{Service: service, Tool: tool, Category: category, Message: msg, Err: err}
}

// FetchStatus is the coarse outcome of a guarded call.
type FetchStatus string

const (
	// FetchSuccess means the call returned fresh data.
	FetchSuccess FetchStatus = "success"
	// FetchFailure means the call failed and no fallback was available.
	FetchFailure FetchStatus = "failure"
	// FetchStale means the call failed but cached data was served instead.
	FetchStale FetchStatus = "stale"
)

// FetchResult is the typed outcome wrapper returned by any guarded call.
// Data is the raw JSON payload on success or stale fallback; Err carries the
// categorized failure when Status is not FetchSuccess.
type FetchResult struct {
	Status FetchStatus     `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Err    *ServiceError   `json:"error,omitempty"`
}

// Success wraps freshly fetched data.
func Success(data []byte) FetchResult {
	return FetchResult{Status: FetchSuccess, Data: data}
}

// Failure wraps a categorized failure with no usable data.
func Failure(err *ServiceError) FetchResult {
	return FetchResult{Status: FetchFailure, Err: err}
}

// StaleFallback wraps cached data served because the live call failed. The
// originating error is retained so callers can attach it to a warning.
func StaleFallback(data []byte, err *ServiceError) FetchResult {
	return FetchResult{Status: FetchStale, Data: data, Err: err}
}

// OK reports whether the result carries usable data (fresh or stale).
func (r FetchResult) OK() bool { return r.Status != FetchFailure }

// IsStale reports whether the data came from the stale cache.
func (r FetchResult) IsStale() bool { return r.Status == FetchStale }

// BatchFetchResult aggregates the outcomes of a batch call, carrying the
// per-service circuit state snapshot for observability.
type BatchFetchResult struct {
	Results        []FetchResult               `json:"results"`
	AllSucceeded   bool                        `json:"all_succeeded"`
	PartialSuccess bool                        `json:"partial_success"`
	AllFailed      bool                        `json:"all_failed"`
	CircuitStates  map[string]BreakerSnapshot  `json:"circuit_states,omitempty"`
}

// NewBatchFetchResult computes the aggregate flags from individual results.
// Stale fallbacks count as successes for aggregation: the caller received
// usable (if degraded) data.
func NewBatchFetchResult(results []FetchResult, states map[string]BreakerSnapshot) BatchFetchResult {
	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	return BatchFetchResult{
		Results:        results,
		AllSucceeded:   len(results) > 0 && ok == len(results),
		PartialSuccess: ok > 0 && ok < len(results),
		AllFailed:      len(results) > 0 && ok == 0,
		CircuitStates:  states,
	}
}

// Errors returns the service errors of all failed or stale entries.
func (b BatchFetchResult) Errors() []*ServiceError {
	var errs []*ServiceError
	for _, r := range b.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
