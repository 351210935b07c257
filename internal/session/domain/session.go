package domain

import "time"

// NotActivated is the activated_at sentinel for a session whose credential has not been consumed.
const NotActivated int64 = 0

// Session is one issued gateway session. Timestamps are unix seconds.
type Session struct {
	ID          string
	Secret      string
	BackendID   string
	Username    string
	CreatedAt   int64
	ExpireAt    int64
	ActivatedAt int64 // NotActivated until the credential is consumed
}

// New returns a not-yet-activated session created at now and expiring after lifetime.
func New(id, secret, backendID, username string, now time.Time, lifetime time.Duration) *Session {
	created := now.Unix()
	return &Session{
		ID:          id,
		Secret:      secret,
		BackendID:   backendID,
		Username:    username,
		CreatedAt:   created,
		ExpireAt:    created + int64(lifetime/time.Second),
		ActivatedAt: NotActivated,
	}
}

// IsExpired reports whether expire_at lies strictly before now.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpireAt < now.Unix()
}

// IsActivated reports whether the credential has already been consumed.
func (s *Session) IsActivated() bool {
	return s.ActivatedAt != NotActivated
}

// CanAuthenticate reports whether the session may still be activated at now.
func (s *Session) CanAuthenticate(now time.Time) bool {
	return !s.IsExpired(now) && !s.IsActivated()
}

// CanResolve reports whether the session may be resolved at now. Activation does not matter.
func (s *Session) CanResolve(now time.Time) bool {
	return !s.IsExpired(now)
}
