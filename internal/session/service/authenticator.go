package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/audit"
	"dcv-session-gateway/internal/backend/directory"
	"dcv-session-gateway/internal/security"
	"dcv-session-gateway/internal/session/domain"
)

// Authenticator validates a presented credential exactly once.
type Authenticator struct {
	repo     SessionRepo
	backends BackendDirectory
	codec    CredentialDecoder
	obs      Observers
	nowF     func() time.Time
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(repo SessionRepo, backends BackendDirectory, codec CredentialDecoder, obs Observers) *Authenticator {
	return &Authenticator{
		repo:     repo,
		backends: backends,
		codec:    codec,
		obs:      obs.named("authenticator"),
		nowF:     time.Now,
	}
}

// Authenticate validates token presented from originIP and, on success, marks the session activated
// and returns its username. Checks run in a fixed order and the first failure wins: format, decode,
// existence, expiry, prior activation, origin, secret, then the activation compare-and-set.
func (a *Authenticator) Authenticate(ctx context.Context, token, originIP string) (username string, err error) {
	ctx, span := startSpan(ctx, "session.Authenticate", attribute.String("client.address", originIP))
	defer span.End()
	var sessionID, backendID string
	defer func() {
		a.obs.finish(span, a.obs.Metrics.AuthResult, sessionID, backendID, err)
		if err != nil && sessionID != "" {
			a.obs.Audit.LogEvent(ctx, audit.ActionSessionRejected, sessionID, backendID, map[string]string{
				"reason": Reason(err),
			})
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return "", newError(ErrValidation, "Invalid format", nil)
	}
	cred, err := a.codec.Decode(ctx, token)
	if err != nil {
		return "", newError(ErrCrypto, "Invalid token format", err)
	}
	sessionID = cred.SessionID
	span.SetAttributes(attribute.String("session.id", sessionID))

	sess, err := a.repo.GetByID(ctx, sessionID)
	if err != nil {
		return "", upstream("load session", err)
	}
	if sess == nil {
		return "", newError(ErrNotFound, "Session not found", nil)
	}
	backendID = sess.BackendID

	now := a.nowF()
	if sess.IsExpired(now) {
		return "", newError(ErrExpired, "Expired session", nil)
	}
	if sess.IsActivated() {
		return "", newError(ErrAlreadyActivated, "Session already activated", nil)
	}

	backend, err := a.backends.Lookup(ctx, sess.BackendID)
	switch {
	case errors.Is(err, directory.ErrNotFound) || (err == nil && backend == nil):
		return "", newError(ErrOriginMismatch, "Unknown origin", err)
	case err != nil:
		return "", upstream("backend lookup", err)
	}
	if !sameIP(originIP, backend.Address) {
		return "", newError(ErrOriginMismatch, "Unknown origin", nil)
	}

	if !security.SecretEqual(cred.Secret, sess.Secret) {
		return "", newError(ErrSecretMismatch, "Invalid secret", nil)
	}

	ok, err := a.repo.CompareAndSetActivation(ctx, sessionID, domain.NotActivated, now.Unix())
	if err != nil {
		return "", upstream("activate session", err)
	}
	if !ok {
		return "", newError(ErrAlreadyActivated, "Session already activated", nil)
	}

	a.obs.Logger.Info("session activated",
		zap.String("session_id", sessionID),
		zap.String("backend_id", backendID),
		zap.String("username", sess.Username),
	)
	a.obs.Audit.LogEvent(ctx, audit.ActionSessionActivated, sessionID, backendID, map[string]string{
		"username": sess.Username,
	})
	return sess.Username, nil
}
