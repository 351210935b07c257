package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.IssueResult("ok")
	m.AuthResult("ok")
	m.AuthResult("already_activated")
	m.AuthResult("already_activated")
	m.ResolveResult("not_found")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsIssued.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Authentications.WithLabelValues("already_activated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("not_found")))

	n, err := testutil.GatherAndCount(reg, "dcv_gateway_authentications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRegistry_NilSafe(t *testing.T) {
	var m *Registry
	assert.NotPanics(t, func() {
		m.IssueResult("ok")
		m.AuthResult("ok")
		m.ResolveResult("ok")
	})
}

func TestNewRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRegistry(reg)
	assert.Panics(t, func() { NewRegistry(reg) })
}
