// Package middleware holds the gin middleware chain of the HTTP server.
package middleware

import "context"

type contextKey struct{ name string }

var (
	requestIDKey = contextKey{"request_id"}
	clientIPKey  = contextKey{"client_ip"}
)

// HeaderRequestID carries the request id in requests and responses.
const HeaderRequestID = "X-Request-ID"

// WithRequestInfo returns a context carrying the request id and client IP.
func WithRequestInfo(ctx context.Context, requestID, clientIP string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// RequestInfo returns the request id and client IP stored by WithRequestInfo, or empty strings.
// Its signature matches audit.RequestInfoFunc.
func RequestInfo(ctx context.Context) (requestID, clientIP string) {
	requestID, _ = ctx.Value(requestIDKey).(string)
	clientIP, _ = ctx.Value(clientIPKey).(string)
	return requestID, clientIP
}
