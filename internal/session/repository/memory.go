package repository

import (
	"context"
	"fmt"
	"sync"

	"dcv-session-gateway/internal/session/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
// Records are copied in and out so callers never share state with the store.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

// NewMemoryRepository returns an empty in-memory session store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]domain.Session)}
}

// GetByID returns a copy of the session for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Create stores a copy of s. Fails if the id already exists.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, s.ID)
	}
	r.sessions[s.ID] = *s
	return nil
}

// CompareAndSetActivation updates activated_at under the store mutex.
func (r *MemoryRepository) CompareAndSetActivation(ctx context.Context, id string, expected, activatedAt int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.ActivatedAt != expected {
		return false, nil
	}
	s.ActivatedAt = activatedAt
	r.sessions[id] = s
	return true, nil
}

// PingContext always succeeds.
func (r *MemoryRepository) PingContext(ctx context.Context) error {
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
