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
	"dcv-session-gateway/internal/session/domain"
)

func TestIssuer_Issue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.issuer.Issue(ctx, testBackendID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Len(t, res.SessionID, 36)

	rec := f.record(t, res.SessionID)
	assert.Equal(t, testBackendID, rec.BackendID)
	assert.Equal(t, testUsername, rec.Username)
	assert.Equal(t, domain.NotActivated, rec.ActivatedAt)
	assert.Equal(t, testNow.Unix(), rec.CreatedAt)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), rec.ExpireAt)
	assert.GreaterOrEqual(t, len(rec.Secret), 86, "64 random bytes base64url encoded")

	cred, err := f.codec.Decode(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, cred.SessionID)
	assert.Equal(t, rec.Secret, cred.Secret)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsIssued.WithLabelValues("ok")))
}

func TestIssuer_IssueUniqueSessions(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t)
	b := f.issue(t)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.NotEqual(t, f.record(t, a.SessionID).Secret, f.record(t, b.SessionID).Secret)
}

func TestIssuer_Rejections(t *testing.T) {
	testCases := []struct {
		name      string
		backendID string
		backend   *backenddomain.Backend
		wantKind  error
		wantMsg   string
	}{
		{"missing backend id", "  ", nil, ErrValidation, "Parameter backendId is required"},
		{"unknown backend", "i-missing", nil, ErrNotFound, "Invalid backendId"},
		{
			"wrong type tag", "i-worker",
			&backenddomain.Backend{ID: "i-worker", Address: "10.0.0.2", Tags: map[string]string{"dcv:type": "worker", "dcv:user": "bob"}},
			ErrValidation, "Backend has no required tags",
		},
		{
			"no user tag", "i-nouser",
			&backenddomain.Backend{ID: "i-nouser", Address: "10.0.0.3", Tags: map[string]string{"dcv:type": "server"}},
			ErrValidation, "Backend has no required tags",
		},
		{
			"stopped backend", "i-stopped",
			&backenddomain.Backend{ID: "i-stopped", Tags: map[string]string{"dcv:type": "server", "dcv:user": "carol"}},
			ErrNotFound, "Invalid backendId",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.backend != nil {
				f.dir.Set(*tc.backend)
			}
			res, err := f.issuer.Issue(context.Background(), tc.backendID)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tc.wantKind)
			assert.Equal(t, tc.wantMsg, Message(err))
		})
	}
}

func TestIssuer_UpstreamFailures(t *testing.T) {
	t.Run("directory unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.issuer.backends = failingDirectory{err: fmt.Errorf("%w: throttled", directory.ErrUnavailable)}
		_, err := f.issuer.Issue(context.Background(), testBackendID)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, directory.ErrUnavailable)
		assert.Equal(t, MessageUnknown, Message(err))
	})
	t.Run("store unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.issuer.repo = failingRepo{err: errBoom}
		_, err := f.issuer.Issue(context.Background(), testBackendID)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, errBoom)
	})
	t.Run("secret generation", func(t *testing.T) {
		f := newFixture(t)
		f.issuer.newSecret = func() (string, error) { return "", errBoom }
		_, err := f.issuer.Issue(context.Background(), testBackendID)
		assert.ErrorIs(t, err, ErrUpstream)
	})
}
