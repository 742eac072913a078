// Package resilience provides pacing, backoff and error classification for
// calls to rate-sensitive external services.
package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/tidwall/gjson"
)

// RateLimitError marks a provider response as a rate-limit or anti-bot block.
// These never count as ordinary failures: they drive the pacer instead.
type RateLimitError struct {
	Err        error
	StatusCode int
	Signal     string
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError wraps err as a rate-limit signal.
func NewRateLimitError(err error, statusCode int, signal string) *RateLimitError {
	return &RateLimitError{Err: err, StatusCode: statusCode, Signal: signal}
}

// blockSignatures are lower-case substrings that providers put in error
// bodies or messages when throttling or challenging a client.
var blockSignatures = []string{
	"rate limit",
	"ratelimit",
	"too many requests",
	"captcha",
	"blocked",
	"access denied",
	"just a moment",
	"checking your browser",
	"unusual traffic",
	"try again later",
}

// DetectBlock reports whether a provider response looks like throttling or an
// anti-bot challenge, returning the matched signal. Body signatures are only
// checked on non-2xx responses or bodies that are not JSON.
func DetectBlock(statusCode int, body []byte) (bool, string) {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true, "status_429"
	case http.StatusForbidden:
		return true, "status_403"
	}

	// Challenge pages are small; a large body mentioning "blocked" is data.
	if len(body) == 0 || len(body) > 4096 {
		return false, ""
	}
	// A successful JSON payload is data even when a field mentions "blocked".
	if statusCode >= 200 && statusCode < 300 && gjson.ValidBytes(body) {
		return false, ""
	}
	lower := strings.ToLower(string(body))
	for _, sig := range blockSignatures {
		if strings.Contains(lower, sig) {
			return true, sig
		}
	}
	return false, ""
}

// IsRateLimited returns true if err is, or wraps, a RateLimitError, or if its
// message carries a known block signature.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range blockSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// TransientError wraps an error that is safe to retry (5xx, network timeout,
// serialization failure).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient network or database
// patterns. Rate-limit signals are not transient: retrying them immediately is
// exactly what the pacer exists to prevent.
func IsTransient(err error) bool {
	if err == nil || IsRateLimited(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"database is locked",
		"sqlstate 40001",
		"sqlstate 40p01",
		"conn closed",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the status indicates a server-side
// hiccup worth retrying. 429 is deliberately absent: see DetectBlock.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
