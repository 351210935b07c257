package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	backenddomain "dcv-session-gateway/internal/backend/domain"
	"dcv-session-gateway/internal/backend/directory"
	"dcv-session-gateway/internal/credential"
	"dcv-session-gateway/internal/keyservice"
	"dcv-session-gateway/internal/metrics"
	"dcv-session-gateway/internal/policy/engine"
	"dcv-session-gateway/internal/session/domain"
	"dcv-session-gateway/internal/session/repository"
)

const (
	testBackendID = "i-0abc"
	testAddress   = "10.0.1.23"
	testUsername  = "alice"
)

var testNow = time.Unix(1_700_000_000, 0)

// fixture wires the three services over the memory store, a static directory and the local envelope key service.
type fixture struct {
	repo     SessionRepo
	dir      *directory.StaticDirectory
	codec    *credential.Codec
	metrics  *metrics.Registry
	issuer   *Issuer
	auth     *Authenticator
	resolver *Resolver
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, repository.NewMemoryRepository())
}

func newFixtureWithRepo(t *testing.T, repo SessionRepo) *fixture {
	t.Helper()
	keys, err := keyservice.NewLocalEnvelope(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	eval, err := engine.NewOPAEvaluator(context.Background(), engine.Rules{
		TypeTag:   "dcv:type",
		TypeValue: "server",
		UserTag:   "dcv:user",
	}, "")
	require.NoError(t, err)

	f := &fixture{
		repo: repo,
		dir: directory.NewStaticDirectory(backenddomain.Backend{
			ID:      testBackendID,
			Address: testAddress,
			Tags:    map[string]string{"dcv:type": "server", "dcv:user": testUsername},
		}),
		codec:   credential.NewCodec(keys),
		metrics: metrics.NewRegistry(prometheus.NewRegistry()),
		now:     testNow,
	}
	obs := Observers{Metrics: f.metrics}
	clock := func() time.Time { return f.now }

	f.issuer = NewIssuer(repo, f.dir, eval, f.codec, time.Hour, obs)
	f.issuer.nowF = clock
	f.auth = NewAuthenticator(repo, f.dir, f.codec, obs)
	f.auth.nowF = clock
	f.resolver = NewResolver(repo, f.dir, ResolverConfig{SessionName: "console", Port: 8443, WebURLPath: "/"}, obs)
	f.resolver.nowF = clock
	return f
}

func (f *fixture) issue(t *testing.T) *IssueResult {
	t.Helper()
	res, err := f.issuer.Issue(context.Background(), testBackendID)
	require.NoError(t, err)
	return res
}

// record returns the stored session for id.
func (f *fixture) record(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

// failingRepo returns err from every call.
type failingRepo struct{ err error }

func (r failingRepo) GetByID(context.Context, string) (*domain.Session, error) { return nil, r.err }
func (r failingRepo) Create(context.Context, *domain.Session) error             { return r.err }
func (r failingRepo) CompareAndSetActivation(context.Context, string, int64, int64) (bool, error) {
	return false, r.err
}

// failingDirectory returns err from Lookup.
type failingDirectory struct{ err error }

func (d failingDirectory) Lookup(context.Context, string) (*backenddomain.Backend, error) {
	return nil, d.err
}

// stealingRepo activates the session behind the authenticator's back right before its compare-and-set.
type stealingRepo struct {
	SessionRepo
}

func (r stealingRepo) CompareAndSetActivation(ctx context.Context, id string, expected, activatedAt int64) (bool, error) {
	if _, err := r.SessionRepo.CompareAndSetActivation(ctx, id, expected, activatedAt-1); err != nil {
		return false, err
	}
	return r.SessionRepo.CompareAndSetActivation(ctx, id, expected, activatedAt)
}

var errBoom = errors.New("boom")
