package engine

import (
	"context"

	backenddomain "dcv-session-gateway/internal/backend/domain"
)

// Rules are the tag names and values the eligibility policy checks a backend against.
type Rules struct {
	TypeTag   string
	TypeValue string
	UserTag   string
}

// Decision is the outcome of an eligibility evaluation. Username is the identity bound to
// sessions on the backend and is only meaningful when Eligible is true.
type Decision struct {
	Eligible bool
	Username string
}

// Evaluator decides whether a backend may be the target of a new session.
type Evaluator interface {
	EvaluateEligibility(ctx context.Context, backend *backenddomain.Backend) (Decision, error)
}
