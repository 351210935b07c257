package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backenddomain "dcv-session-gateway/internal/backend/domain"
	"dcv-session-gateway/internal/backend/directory"
	"dcv-session-gateway/internal/credential"
	"dcv-session-gateway/internal/session/domain"
)

func TestAuthenticator_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.issue(t)

	f.now = testNow.Add(5 * time.Minute)
	username, err := f.auth.Authenticate(ctx, res.Token, testAddress)
	require.NoError(t, err)
	assert.Equal(t, testUsername, username)
	assert.Equal(t, f.now.Unix(), f.record(t, res.SessionID).ActivatedAt)

	username, err = f.auth.Authenticate(ctx, res.Token, testAddress)
	assert.Empty(t, username)
	assert.ErrorIs(t, err, ErrAlreadyActivated)
	assert.Equal(t, "Session already activated", Message(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Authentications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Authentications.WithLabelValues("already_activated")))
}

func TestAuthenticator_AcceptsUnpaddedToken(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t)
	unpadded := res.Token
	for len(unpadded) > 0 && unpadded[len(unpadded)-1] == '=' {
		unpadded = unpadded[:len(unpadded)-1]
	}
	_, err := f.auth.Authenticate(context.Background(), unpadded, testAddress)
	assert.NoError(t, err)
}

func TestAuthenticator_IPv4MappedOrigin(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t)
	_, err := f.auth.Authenticate(context.Background(), res.Token, "::ffff:"+testAddress)
	assert.NoError(t, err)
}

func TestAuthenticator_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t)

	// Still valid in the second equal to expire_at.
	f.now = testNow.Add(time.Hour)
	_, err := f.auth.Authenticate(context.Background(), res.Token, testAddress)
	assert.NoError(t, err)
}

func TestAuthenticator_ExpiryTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.issue(t)
	rec := f.record(t, res.SessionID)

	// Expired, wrong origin and wrong secret: expiry must win.
	forged, err := f.codec.Encode(ctx, credential.Credential{SessionID: rec.ID, Secret: "wrong"})
	require.NoError(t, err)
	f.now = testNow.Add(time.Hour + time.Second)

	_, err = f.auth.Authenticate(ctx, forged, "192.0.2.1")
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "Expired session", Message(err))

	// Expired and already activated: expiry still wins.
	f.now = testNow
	_, err = f.auth.Authenticate(ctx, res.Token, testAddress)
	require.NoError(t, err)
	f.now = testNow.Add(2 * time.Hour)
	_, err = f.auth.Authenticate(ctx, res.Token, testAddress)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestAuthenticator_SecretMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.issue(t)

	forged, err := f.codec.Encode(ctx, credential.Credential{SessionID: res.SessionID, Secret: "not-the-secret"})
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, forged, testAddress)
	assert.ErrorIs(t, err, ErrSecretMismatch)
	assert.Equal(t, "Invalid secret", Message(err))
	assert.Equal(t, domain.NotActivated, f.record(t, res.SessionID).ActivatedAt, "rejection must not activate")

	// The genuine credential still works afterwards.
	_, err = f.auth.Authenticate(ctx, res.Token, testAddress)
	assert.NoError(t, err)
}

func TestAuthenticator_OriginIsResolvedFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.issue(t)

	f.dir.Set(backenddomain.Backend{
		ID:      testBackendID,
		Address: "10.0.9.9",
		Tags:    map[string]string{"dcv:type": "server", "dcv:user": testUsername},
	})
	_, err := f.auth.Authenticate(ctx, res.Token, testAddress)
	assert.ErrorIs(t, err, ErrOriginMismatch)
	assert.Equal(t, "Unknown origin", Message(err))

	_, err = f.auth.Authenticate(ctx, res.Token, "10.0.9.9")
	assert.NoError(t, err)
}

func TestAuthenticator_BackendGone(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t)
	f.dir.Remove(testBackendID)

	_, err := f.auth.Authenticate(context.Background(), res.Token, testAddress)
	assert.ErrorIs(t, err, ErrOriginMismatch)
	assert.Equal(t, "Unknown origin", Message(err))
}

func TestAuthenticator_InputRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unknown, err := f.codec.Encode(ctx, credential.Credential{SessionID: "00000000-0000-4000-8000-000000000000", Secret: "s"})
	require.NoError(t, err)

	testCases := []struct {
		name     string
		token    string
		wantKind error
		wantMsg  string
	}{
		{"empty", "", ErrValidation, "Invalid format"},
		{"blank", "   ", ErrValidation, "Invalid format"},
		{"not base64", "!!!not-base64!!!", ErrCrypto, "Invalid token format"},
		{"garbage ciphertext", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", ErrCrypto, "Invalid token format"},
		{"unknown session", unknown, ErrNotFound, "Session not found"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			username, err := f.auth.Authenticate(ctx, tc.token, testAddress)
			assert.Empty(t, username)
			assert.ErrorIs(t, err, tc.wantKind)
			assert.Equal(t, tc.wantMsg, Message(err))
		})
	}
}

func TestAuthenticator_LostCompareAndSet(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t)
	f.auth.repo = stealingRepo{SessionRepo: f.repo}

	_, err := f.auth.Authenticate(context.Background(), res.Token, testAddress)
	assert.ErrorIs(t, err, ErrAlreadyActivated)
}

func TestAuthenticator_UpstreamFailures(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		f := newFixture(t)
		res := f.issue(t)
		f.auth.repo = failingRepo{err: errBoom}
		_, err := f.auth.Authenticate(context.Background(), res.Token, testAddress)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Equal(t, "Unknown error", Message(err))
	})
	t.Run("directory", func(t *testing.T) {
		f := newFixture(t)
		res := f.issue(t)
		f.auth.backends = failingDirectory{err: fmt.Errorf("%w: timeout", directory.ErrUnavailable)}
		_, err := f.auth.Authenticate(context.Background(), res.Token, testAddress)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Equal(t, domain.NotActivated, f.record(t, res.SessionID).ActivatedAt)
	})
}
