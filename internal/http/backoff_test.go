package http

import (
	"fmt"
	"net"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{fmt.Errorf("read tcp: i/o timeout"), ErrorTypeNetwork},
		{fmt.Errorf("unexpected EOF"), ErrorTypeNetwork},
		{fmt.Errorf("dial tcp 127.0.0.1:1: connect: connection refused"), ErrorTypeNetwork},
		{&net.OpError{Op: "dial", Err: fmt.Errorf("boom")}, ErrorTypeNetwork},
		{fmt.Errorf("websocket: bad handshake (status 502)"), ErrorTypeRetryable},
		{fmt.Errorf("websocket: bad handshake (status 429)"), ErrorTypeRetryable},
		{fmt.Errorf("websocket: bad handshake (status 404)"), ErrorTypeFatal},
		{fmt.Errorf("something odd"), ErrorTypeFatal},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.want))
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := CalculateBackoff(0, time.Second, time.Minute); got != 0 {
		t.Errorf("CalculateBackoff(0) = %v, want 0", got)
	}

	for attempt := 1; attempt < 70; attempt++ {
		got := CalculateBackoff(attempt, 100*time.Millisecond, 2*time.Second)
		if got < 0 || got >= 2*time.Second {
			t.Fatalf("CalculateBackoff(%d) = %v, want within [0, 2s)", attempt, got)
		}
	}
}

func TestCalculateBackoffZeroMax(t *testing.T) {
	if got := CalculateBackoff(3, time.Second, 0); got != 0 {
		t.Errorf("CalculateBackoff with zero max = %v, want 0", got)
	}
}

func TestErrorTypeName(t *testing.T) {
	if got := ErrorTypeName(ErrorType(42)); got != "unknown" {
		t.Errorf("ErrorTypeName(42) = %q, want unknown", got)
	}
}
