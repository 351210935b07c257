// Package directory looks up backends by id. Every lookup reflects the directory's current state.
package directory

import (
	"context"
	"errors"

	"dcv-session-gateway/internal/backend/domain"
)

var (
	// ErrNotFound is returned when no backend has the requested id.
	ErrNotFound = errors.New("backend not found")
	// ErrUnavailable is returned when the directory itself cannot answer.
	ErrUnavailable = errors.New("backend directory unavailable")
)

// Directory resolves backend ids to backends.
type Directory interface {
	Lookup(ctx context.Context, backendID string) (*domain.Backend, error)
}
