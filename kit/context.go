// Package kit provides the shared transport plumbing for preflight
// services: typed context keys and the adapter that exposes an Endpoint as
// an MCP tool.
package kit

import "context"

// Endpoint is the transport-agnostic handler shape: decoded request in,
// serializable response out.
type Endpoint func(ctx context.Context, req any) (any, error)

type contextKey string

const (
	RequestIDKey contextKey = "kit_request_id"
	TransportKey contextKey = "kit_transport" // "http", "mcp"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}
