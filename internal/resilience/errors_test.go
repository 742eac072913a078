package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsRateLimited_Explicit(t *testing.T) {
	err := NewRateLimitError(errors.New("provider: status 429"), 429, "status_429")
	if !IsRateLimited(err) {
		t.Error("expected RateLimitError to be rate limited")
	}
	wrapped := fmt.Errorf("lookup ABC123: %w", err)
	if !IsRateLimited(wrapped) {
		t.Error("expected wrapped RateLimitError to be rate limited")
	}
}

func TestIsRateLimited_MessageSignatures(t *testing.T) {
	for _, msg := range []string{
		"provider: Too Many Requests",
		"please solve the CAPTCHA",
		"Your IP has been blocked",
		"Just a moment...",
	} {
		if !IsRateLimited(errors.New(msg)) {
			t.Errorf("expected %q to be rate limited", msg)
		}
	}
}

func TestIsRateLimited_Negative(t *testing.T) {
	if IsRateLimited(nil) {
		t.Error("nil should not be rate limited")
	}
	if IsRateLimited(errors.New("provider: status 500")) {
		t.Error("plain 500 should not be rate limited")
	}
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
		signal string
	}{
		{"429", 429, "", true, "status_429"},
		{"403", 403, "nope", true, "status_403"},
		{"challenge body", 200, "<html>Checking your browser before accessing</html>", true, "checking your browser"},
		{"ok", 200, `{"owner":{"name":"Anna"}}`, false, ""},
		{"empty", 200, "", false, ""},
		{"json owner named blocked", 200, `{"owner":{"name":"Blocked Motors AB","note":"access denied by seller"}}`, false, ""},
		{"json array", 200, `[{"name":"Captcha Bil AB"}]`, false, ""},
		{"non-2xx json challenge", 503, `{"error":"unusual traffic from your network"}`, true, "unusual traffic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sig := DetectBlock(tt.status, []byte(tt.body))
			if got != tt.want || sig != tt.signal {
				t.Errorf("DetectBlock(%d, %q) = %v, %q; want %v, %q", tt.status, tt.body, got, sig, tt.want, tt.signal)
			}
		})
	}
}

func TestDetectBlock_LargeBodyIsData(t *testing.T) {
	body := make([]byte, 5000)
	copy(body, "blocked")
	if got, _ := DetectBlock(200, body); got {
		t.Error("large body should not be treated as a block page")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(NewTransientError(errors.New("overloaded"), 503)) {
		t.Error("expected TransientError to be transient")
	}
	if !IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)) {
		t.Error("ECONNRESET should be transient")
	}
	if !IsTransient(errors.New("sqlite: database is locked")) {
		t.Error("locked sqlite database should be transient")
	}
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
	if IsTransient(errors.New("duplicate key value")) {
		t.Error("constraint errors should not be transient")
	}
	if IsTransient(NewRateLimitError(errors.New("throttled"), 429, "status_429")) {
		t.Error("rate limit errors should not be transient")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	if !IsTransient(fmt.Errorf("dial: %w", timeoutErr{})) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 404, 429} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not to be transient", code)
		}
	}
}
