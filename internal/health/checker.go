// Package health checks readiness of the gateway's dependencies for /healthz and the gRPC health service.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single Check.
const DefaultTimeout = 3 * time.Second

// Pinger is implemented by the session stores (e.g. *repository.PostgresRepository, *repository.RedisRepository).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the eligibility evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker reports whether the session store is reachable and the eligibility policy evaluates.
// A nil pinger or policy is skipped.
type Checker struct {
	pinger  Pinger
	policy  PolicyChecker
	timeout time.Duration
}

// NewChecker returns a Checker using DefaultTimeout.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy, timeout: DefaultTimeout}
}

// Check runs every configured probe and joins their failures. Returns nil when all pass.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var errs []error
	if c.pinger != nil {
		if err := c.pinger.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session store: %w", err))
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("eligibility policy: %w", err))
		}
	}
	return errors.Join(errs...)
}
