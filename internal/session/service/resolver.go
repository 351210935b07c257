package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"dcv-session-gateway/internal/audit"
	"dcv-session-gateway/internal/backend/directory"
)

// Transports accepted by Resolve.
const (
	TransportHTTP = "HTTP"
	TransportQUIC = "QUIC"
)

// ResolverConfig holds the fixed parts of every resolution.
type ResolverConfig struct {
	// SessionName is the server-side display session name (e.g. "console").
	SessionName string
	// Port is the backend port, used for both transports.
	Port int
	// WebURLPath is the web client path on the backend.
	WebURLPath string
}

// Resolution is the endpoint the gateway proxies an authenticated session to.
type Resolution struct {
	SessionID         string
	ServerEndpoint    string
	Port              int
	WebURLPath        string
	TransportProtocol string
}

// Resolver maps a session id to the live endpoint of its backend. It never mutates sessions.
type Resolver struct {
	repo     SessionRepo
	backends BackendDirectory
	cfg      ResolverConfig
	obs      Observers
	nowF     func() time.Time
}

// NewResolver returns a Resolver.
func NewResolver(repo SessionRepo, backends BackendDirectory, cfg ResolverConfig, obs Observers) *Resolver {
	return &Resolver{
		repo:     repo,
		backends: backends,
		cfg:      cfg,
		obs:      obs.named("resolver"),
		nowF:     time.Now,
	}
}

// Resolve looks up sessionID and returns the current address of its backend. Activation state is ignored.
func (r *Resolver) Resolve(ctx context.Context, sessionID, transport string) (res *Resolution, err error) {
	sessionID = strings.TrimSpace(sessionID)
	ctx, span := startSpan(ctx, "session.Resolve",
		attribute.String("session.id", sessionID),
		attribute.String("network.transport", transport),
	)
	defer span.End()
	var backendID string
	defer func() { r.obs.finish(span, r.obs.Metrics.ResolveResult, sessionID, backendID, err) }()

	if sessionID == "" {
		return nil, newError(ErrValidation, "Missing sessionId parameter", nil)
	}
	if transport != TransportHTTP && transport != TransportQUIC {
		return nil, newError(ErrValidation, "Invalid transport parameter", nil)
	}

	sess, err := r.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, upstream("load session", err)
	}
	if sess == nil {
		return nil, newError(ErrNotFound, "Unknown sessionId", nil)
	}
	backendID = sess.BackendID
	if sess.IsExpired(r.nowF()) {
		return nil, newError(ErrExpired, "Expired sessionId", nil)
	}

	backend, err := r.backends.Lookup(ctx, sess.BackendID)
	switch {
	case errors.Is(err, directory.ErrNotFound) || (err == nil && backend == nil):
		return nil, newError(ErrNotFound, "Unknown sessionId", err)
	case err != nil:
		return nil, upstream("backend lookup", err)
	case !backend.Reachable():
		return nil, newError(ErrNotFound, "Unknown sessionId", nil)
	}

	r.obs.Audit.LogEvent(ctx, audit.ActionSessionResolved, sessionID, backendID, map[string]string{
		"transport": transport,
		"endpoint":  backend.Address,
	})
	return &Resolution{
		SessionID:         r.cfg.SessionName,
		ServerEndpoint:    backend.Address,
		Port:              r.cfg.Port,
		WebURLPath:        r.cfg.WebURLPath,
		TransportProtocol: transport,
	}, nil
}
