package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"dcv-session-gateway/internal/telemetry"
	"dcv-session-gateway/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry emits one http_request event per request. Best-effort: emission is asynchronous and
// failures never affect the response. If emitter is nil, the middleware only calls Next.
// skipRoutes lists route templates not to emit (e.g. /healthz, /metrics).
func Telemetry(emitter telemetry.EventEmitter, skipRoutes map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if emitter == nil || skipRoutes[c.FullPath()] {
			return
		}
		meta, err := json.Marshal(httpRequestMetadata{
			Method:     c.Request.Method,
			Route:      c.FullPath(),
			StatusCode: c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
		})
		if err != nil {
			return
		}
		telemetry.EmitAsync(emitter, c.Request.Context(), &domain.Event{
			EventType: domain.EventHTTPRequest,
			Source:    "http_middleware",
			RequestID: requestID(c),
			Metadata:  meta,
			CreatedAt: time.Now().UTC(),
		})
	}
}
