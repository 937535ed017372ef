package kit

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	// WHAT: A request ID stored in the context comes back unchanged.
	// WHY: Handlers correlate log lines through this key.
	ctx := WithRequestID(context.Background(), "req_123")
	if got := GetRequestID(ctx); got != "req_123" {
		t.Errorf("request id = %q, want req_123", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	// WHAT: An unset request ID reads as empty, not a panic.
	// WHY: Background jobs run without transport context.
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("request id = %q, want empty", got)
	}
}

func TestGetTransport_DefaultsToHTTP(t *testing.T) {
	// WHAT: The transport defaults to "http" when unset.
	// WHY: HTTP is the primary surface; MCP sets its own marker.
	if got := GetTransport(context.Background()); got != "http" {
		t.Errorf("transport = %q, want http", got)
	}
	ctx := WithTransport(context.Background(), "mcp")
	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("transport = %q, want mcp", got)
	}
}
