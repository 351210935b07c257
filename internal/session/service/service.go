// Package service implements session issuance, single-use credential authentication and session resolution.
package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/audit"
	backenddomain "dcv-session-gateway/internal/backend/domain"
	"dcv-session-gateway/internal/credential"
	"dcv-session-gateway/internal/metrics"
	"dcv-session-gateway/internal/session/domain"
)

const tracerName = "dcv-session-gateway/session"

// SessionRepo is the session store the services need.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	CompareAndSetActivation(ctx context.Context, id string, expected, activatedAt int64) (bool, error)
}

// BackendDirectory looks up backends by id. Implementations return directory.ErrNotFound for unknown ids.
type BackendDirectory interface {
	Lookup(ctx context.Context, backendID string) (*backenddomain.Backend, error)
}

// CredentialEncoder seals a credential into a client token.
type CredentialEncoder interface {
	Encode(ctx context.Context, cred credential.Credential) (string, error)
}

// CredentialDecoder opens a client token.
type CredentialDecoder interface {
	Decode(ctx context.Context, token string) (credential.Credential, error)
}

// Observers are the logging, audit and metrics sinks shared by the services. Nil fields are replaced by no-ops.
type Observers struct {
	Logger  *zap.Logger
	Audit   audit.AuditLogger
	Metrics *metrics.Registry
}

type noopAudit struct{}

func (noopAudit) LogEvent(context.Context, string, string, string, map[string]string) {}

func (o Observers) named(component string) Observers {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Logger = o.Logger.Named(component)
	if o.Audit == nil {
		o.Audit = noopAudit{}
	}
	return o
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish counts, traces and logs the outcome of one operation. Rejections are logged at Info,
// upstream failures at Error.
func (o Observers) finish(span trace.Span, count func(string), sessionID, backendID string, err error) {
	reason := Reason(err)
	count(reason)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("session_id", sessionID),
		zap.String("backend_id", backendID),
		zap.Error(err),
	}
	if errors.Is(err, ErrUpstream) {
		o.Logger.Error("upstream failure", fields...)
		return
	}
	o.Logger.Info("request rejected", fields...)
}
