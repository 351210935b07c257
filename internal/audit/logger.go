// Package audit records session lifecycle events to the structured log and the telemetry pipeline.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"dcv-session-gateway/internal/telemetry"
	telemetrydomain "dcv-session-gateway/internal/telemetry/domain"
)

// Actions recorded by the session services.
const (
	ActionSessionIssued    = telemetrydomain.EventSessionIssued
	ActionSessionActivated = telemetrydomain.EventSessionActivated
	ActionSessionRejected  = telemetrydomain.EventSessionRejected
	ActionSessionResolved  = telemetrydomain.EventSessionResolved
)

// RequestInfoFunc returns the request id and client IP carried by ctx, or empty strings.
type RequestInfoFunc func(context.Context) (requestID, clientIP string)

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, action, sessionID, backendID string, fields map[string]string)
}

// Logger implements AuditLogger on a zap logger and an optional telemetry emitter.
type Logger struct {
	logger      *zap.Logger
	emitter     telemetry.EventEmitter
	requestInfo RequestInfoFunc
	nowF        func() time.Time
}

var _ AuditLogger = (*Logger)(nil)

// NewLogger returns an AuditLogger. emitter and requestInfo may be nil; then events are only
// logged, and request id and client IP are recorded as "unknown".
func NewLogger(logger *zap.Logger, emitter telemetry.EventEmitter, requestInfo RequestInfoFunc) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		logger:      logger.Named("audit"),
		emitter:     emitter,
		requestInfo: requestInfo,
		nowF:        time.Now,
	}
}

// LogEvent writes one audit entry. fields must not contain secrets or credentials.
func (l *Logger) LogEvent(ctx context.Context, action, sessionID, backendID string, fields map[string]string) {
	requestID, clientIP := "unknown", "unknown"
	if l.requestInfo != nil {
		id, ip := l.requestInfo(ctx)
		if id != "" {
			requestID = id
		}
		if ip != "" {
			clientIP = ip
		}
	}

	zf := make([]zap.Field, 0, len(fields)+4)
	zf = append(zf,
		zap.String("action", action),
		zap.String("session_id", sessionID),
		zap.String("backend_id", backendID),
		zap.String("client_ip", clientIP),
		zap.String("request_id", requestID),
	)
	for k, v := range fields {
		zf = append(zf, zap.String(k, v))
	}
	l.logger.Info("audit event", zf...)

	if l.emitter == nil {
		return
	}
	meta := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		meta[k] = v
	}
	meta["client_ip"] = clientIP
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		l.logger.Warn("audit: failed to encode metadata", zap.String("action", action), zap.Error(err))
		return
	}
	telemetry.EmitAsync(l.emitter, ctx, &telemetrydomain.Event{
		EventType: action,
		Source:    "audit",
		SessionID: sessionID,
		BackendID: backendID,
		RequestID: requestID,
		Metadata:  metaJSON,
		CreatedAt: l.nowF().UTC(),
	})
}
