package repository

import (
	"context"
	"errors"

	"dcv-session-gateway/internal/session/domain"
)

// ErrDuplicate is returned by Create when a session with the same id already exists.
var ErrDuplicate = errors.New("session already exists")

// Repository defines persistence for gateway sessions.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Create inserts a new session. Only used at issuance. An existing id fails with ErrDuplicate.
	Create(ctx context.Context, s *domain.Session) error
	// CompareAndSetActivation atomically sets activated_at to activatedAt if it still equals expected.
	// Returns false when the stored value differs or the session does not exist.
	CompareAndSetActivation(ctx context.Context, id string, expected, activatedAt int64) (bool, error)
}
