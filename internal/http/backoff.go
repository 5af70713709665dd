package http

import (
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

// ErrorType classifies a connection failure for logging and retry decisions.
type ErrorType int

const (
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeNetwork covers timeouts, resets, refused and unreachable hosts.
	ErrorTypeNetwork
	// ErrorTypeRetryable covers throttling and 5xx answers.
	ErrorTypeRetryable
	// ErrorTypeFatal is everything else, e.g. a 404 on the push endpoint.
	ErrorTypeFatal
)

var networkMarkers = []string{
	"tls handshake timeout",
	"connection reset",
	"i/o timeout",
	"eof",
	"connection refused",
	"broken pipe",
	"no such host",
	"timeout",
}

var retryableMarkers = []string{
	"429", "500", "502", "503", "504",
	"service unavailable",
}

// ClassifyError sorts err into an ErrorType. net.Error values are network
// errors; otherwise the message is matched against known markers.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, networkMarkers) {
		return ErrorTypeNetwork
	}
	if containsAny(msg, retryableMarkers) {
		return ErrorTypeRetryable
	}
	return ErrorTypeFatal
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CalculateBackoff returns a full-jitter delay for the given attempt:
// random(0, min(maxDelay, initialDelay * 2^attempt)). Attempt 0 waits nothing.
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	shift := attempt
	if shift > 30 {
		shift = 30
	}
	ceiling := time.Duration(1<<uint(shift)) * initialDelay
	if ceiling > maxDelay || ceiling <= 0 {
		ceiling = maxDelay
	}
	if ceiling <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(ceiling)))
}

// ErrorTypeName returns the log label for an ErrorType.
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
