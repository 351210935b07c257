package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"dcv-session-gateway/internal/session/domain"
)

const (
	getSessionSQL = `SELECT session_id, secret, backend_id, username, created_at, expire_at, activated_at
FROM gateway_sessions WHERE session_id = $1`
	createSessionSQL = `INSERT INTO gateway_sessions (session_id, secret, backend_id, username, created_at, expire_at, activated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	uniqueViolation    = "23505"
	activateSessionSQL = `UPDATE gateway_sessions SET activated_at = $3 WHERE session_id = $1 AND activated_at = $2`
)

// PostgresRepository stores sessions in the gateway_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, getSessionSQL, id).Scan(
		&s.ID, &s.Secret, &s.BackendID, &s.Username, &s.CreatedAt, &s.ExpireAt, &s.ActivatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, createSessionSQL,
		s.ID, s.Secret, s.BackendID, s.Username, s.CreatedAt, s.ExpireAt, s.ActivatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, s.ID)
	}
	return err
}

// CompareAndSetActivation is a single conditional UPDATE; the row lock taken by Postgres serializes racing callers.
func (r *PostgresRepository) CompareAndSetActivation(ctx context.Context, id string, expected, activatedAt int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, activateSessionSQL, id, expected, activatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PingContext reports whether the database is reachable.
func (r *PostgresRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var _ Repository = (*PostgresRepository)(nil)
