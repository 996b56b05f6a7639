package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChallengesCreated   *prometheus.CounterVec
	Verifications       *prometheus.CounterVec
	SessionsCreated     prometheus.Counter
	SessionsInvalidated prometheus.Counter
	TokensCreated       prometheus.Counter
	TokensRefreshed     prometheus.Counter
	CodeExchanges       *prometheus.CounterVec
	SweepDeleted        *prometheus.CounterVec
	RateLimited         prometheus.Counter
}

// New creates the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChallengesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_challenges_created_total",
			Help: "Total number of login challenges issued.",
		}, []string{"provider"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_verifications_total",
			Help: "Challenge verifications by provider and outcome.",
		}, []string{"provider", "outcome"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_sessions_created_total",
			Help: "Total number of sessions created.",
		}),
		SessionsInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_sessions_invalidated_total",
			Help: "Total number of sessions invalidated.",
		}),
		TokensCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_tokens_created_total",
			Help: "Total number of token pairs created.",
		}),
		TokensRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_tokens_refreshed_total",
			Help: "Total number of token pairs refreshed.",
		}),
		CodeExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_code_exchanges_total",
			Help: "Authorization code exchanges by outcome.",
		}, []string{"outcome"}),
		SweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_sweep_records_total",
			Help: "Records removed or expired by the sweeper.",
		}, []string{"kind"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sso_rate_limited_total",
			Help: "Requests rejected by the rate gate.",
		}),
	}

	if reg == nil {
		return m
	}

	for _, c := range []prometheus.Collector{
		m.ChallengesCreated, m.Verifications, m.SessionsCreated, m.SessionsInvalidated,
		m.TokensCreated, m.TokensRefreshed, m.CodeExchanges, m.SweepDeleted, m.RateLimited,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}

	log.Info().Msg("Custom Prometheus metrics registered.")

	return m
}

func (m *Metrics) ChallengeCreated(provider string) {
	if m == nil {
		return
	}

	m.ChallengesCreated.WithLabelValues(provider).Inc()
}

func (m *Metrics) Verification(provider string, ok bool) {
	if m == nil {
		return
	}

	outcome := "failure"
	if ok {
		outcome = "success"
	}

	m.Verifications.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) SessionCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) SessionInvalidated() {
	if m != nil {
		m.SessionsInvalidated.Inc()
	}
}

func (m *Metrics) TokenPairCreated() {
	if m != nil {
		m.TokensCreated.Inc()
	}
}

func (m *Metrics) TokenPairRefreshed() {
	if m != nil {
		m.TokensRefreshed.Inc()
	}
}

func (m *Metrics) CodeExchange(ok bool) {
	if m == nil {
		return
	}

	if ok {
		m.CodeExchanges.WithLabelValues("success").Inc()
	} else {
		m.CodeExchanges.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) Swept(kind string, n int64) {
	if m != nil && n > 0 {
		m.SweepDeleted.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) RateLimitHit() {
	if m != nil {
		m.RateLimited.Inc()
	}
}
