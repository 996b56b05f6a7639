package metrics_test

import (
	"testing"

	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Verification("wallet", true)
	m.Verification("wallet", false)
	m.Verification("wallet", false)
	m.Swept("challenges", 3)
	m.Swept("challenges", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("wallet", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Verifications.WithLabelValues("wallet", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepDeleted.WithLabelValues("challenges")))

	n, err := testutil.GatherAndCount(reg, "sso_verifications_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ChallengeCreated("wallet")
		m.Verification("wallet", true)
		m.SessionCreated()
		m.SessionInvalidated()
		m.TokenPairCreated()
		m.TokenPairRefreshed()
		m.CodeExchange(false)
		m.Swept("sessions", 1)
		m.RateLimitHit()
	})
}
