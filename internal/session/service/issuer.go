package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/audit"
	"dcv-session-gateway/internal/backend/directory"
	"dcv-session-gateway/internal/credential"
	"dcv-session-gateway/internal/policy/engine"
	"dcv-session-gateway/internal/security"
	"dcv-session-gateway/internal/session/domain"
)

// IssueResult is the outcome of a successful Issue. Token is the credential handed to the client.
type IssueResult struct {
	Token     string
	SessionID string
}

// Issuer creates sessions and their credentials.
type Issuer struct {
	repo        SessionRepo
	backends    BackendDirectory
	eligibility engine.Evaluator
	codec       CredentialEncoder
	lifetime    time.Duration
	obs         Observers
	nowF        func() time.Time
	newID       func() string
	newSecret   func() (string, error)
}

// NewIssuer returns an Issuer. lifetime is the validity window of every issued session.
func NewIssuer(
	repo SessionRepo,
	backends BackendDirectory,
	eligibility engine.Evaluator,
	codec CredentialEncoder,
	lifetime time.Duration,
	obs Observers,
) *Issuer {
	return &Issuer{
		repo:        repo,
		backends:    backends,
		eligibility: eligibility,
		codec:       codec,
		lifetime:    lifetime,
		obs:         obs.named("issuer"),
		nowF:        time.Now,
		newID:       uuid.NewString,
		newSecret:   security.NewSecret,
	}
}

// Issue creates a session bound to backendID and returns its credential.
// The backend must exist and pass the eligibility policy, which also yields the bound username.
func (s *Issuer) Issue(ctx context.Context, backendID string) (res *IssueResult, err error) {
	backendID = strings.TrimSpace(backendID)
	ctx, span := startSpan(ctx, "session.Issue", attribute.String("backend.id", backendID))
	defer span.End()
	var sessionID string
	defer func() { s.obs.finish(span, s.obs.Metrics.IssueResult, sessionID, backendID, err) }()

	if backendID == "" {
		return nil, newError(ErrValidation, "Parameter backendId is required", nil)
	}
	backend, err := s.backends.Lookup(ctx, backendID)
	if errors.Is(err, directory.ErrNotFound) || (err == nil && backend == nil) {
		return nil, newError(ErrNotFound, "Invalid backendId", err)
	}
	if err != nil {
		return nil, upstream("backend lookup", err)
	}
	if !backend.Reachable() {
		return nil, newError(ErrNotFound, "Invalid backendId", nil)
	}

	decision, err := s.eligibility.EvaluateEligibility(ctx, backend)
	if err != nil {
		return nil, upstream("eligibility", err)
	}
	if !decision.Eligible {
		return nil, newError(ErrValidation, "Backend has no required tags", nil)
	}

	secret, err := s.newSecret()
	if err != nil {
		return nil, upstream("generate secret", err)
	}
	sessionID = s.newID()
	sess := domain.New(sessionID, secret, backendID, decision.Username, s.nowF(), s.lifetime)
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, upstream("store session", err)
	}

	token, err := s.codec.Encode(ctx, credential.Credential{SessionID: sessionID, Secret: secret})
	if err != nil {
		return nil, upstream("encode credential", err)
	}

	span.SetAttributes(attribute.String("session.id", sessionID))
	s.obs.Logger.Info("session issued",
		zap.String("session_id", sessionID),
		zap.String("backend_id", backendID),
		zap.Int64("expire_at", sess.ExpireAt),
	)
	s.obs.Audit.LogEvent(ctx, audit.ActionSessionIssued, sessionID, backendID, map[string]string{
		"username": decision.Username,
	})
	return &IssueResult{Token: token, SessionID: sessionID}, nil
}
