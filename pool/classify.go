package pool

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/hupe1980/teamsmith/resilience"
)

var serverStatusMarkers = []string{
	"500", "501", "502", "503", "504",
}

var clientStatusMarkers = []string{
	"400", "401", "403", "404", "405", "409", "422",
}

// classify maps a raw transport error to a failure category. Matching is
// deliberately conservative: a status code only counts when it appears in a
// status-like position, so "port 5001" does not classify as a 500.
func classify(err error) resilience.ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return resilience.CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resilience.CategoryTimeout
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return resilience.CategoryTimeout
	}
	if hasStatusCode(msg, serverStatusMarkers) {
		return resilience.CategoryHTTPServer
	}
	if hasStatusCode(msg, clientStatusMarkers) {
		return resilience.CategoryHTTPClient
	}
	if strings.Contains(msg, "unmarshal") || strings.Contains(msg, "invalid json") ||
		strings.Contains(msg, "parse error") || strings.Contains(msg, "unexpected end of json") {
		return resilience.CategoryParse
	}
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection aborted") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "no such host") ||
		msg == "eof" || strings.HasSuffix(msg, ": eof") {
		return resilience.CategoryNetwork
	}

	// Unknown transport failures are treated as network errors; the retry
	// loop is bounded either way.
	return resilience.CategoryNetwork
}

func hasStatusCode(msg string, codes []string) bool {
	for _, code := range codes {
		if strings.Contains(msg, "http "+code) ||
			strings.Contains(msg, "status "+code) ||
			strings.Contains(msg, "status: "+code) ||
			strings.Contains(msg, "status code "+code) ||
			strings.Contains(msg, "status code: "+code) ||
			strings.Contains(msg, code+" ") && strings.Contains(msg, "status") {
			return true
		}
	}
	return false
}
