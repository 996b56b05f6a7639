package services

import (
	"context"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultSweepInterval = time.Minute

// SweepResult counts what one sweep removed or expired.
type SweepResult struct {
	Challenges int64
	AuthCodes  int64
	Sessions   int64
}

// Sweeper garbage-collects expired challenges and codes and expires stale sessions.
type Sweeper struct {
	challenges *ChallengeService
	codes      domain.AuthorizationCodeRepository
	sessions   domain.SessionRepository
	interval   time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewSweeper sweeps challenges through the challenge service and codes and sessions
// straight from the store.
func NewSweeper(challenges *ChallengeService, store domain.Store, interval time.Duration, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		challenges: challenges,
		codes:      store,
		sessions:   store,
		interval:   interval,
		metrics:    m,
		now:        time.Now,
	}
}

// SweepOnce runs every cleanup step once. A failing step does not stop the others;
// the first error is returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var (
		res      SweepResult
		firstErr error
	)

	now := s.now().UTC()

	record := func(kind string, n int64, err error, dst *int64) {
		if err != nil {
			log.Error().Err(err).Str("kind", kind).Msg("Sweep step failed")

			if firstErr == nil {
				firstErr = err
			}

			return
		}

		*dst = n
		s.metrics.Swept(kind, n)
	}

	n, err := s.challenges.CleanupExpired(ctx)
	record("challenges", n, err, &res.Challenges)

	n, err = s.codes.DeleteExpiredAuthCodes(ctx, now)
	record("authorization_codes", n, err, &res.AuthCodes)

	n, err = s.sessions.ExpireSessions(ctx, now)
	record("sessions", n, err, &res.Sessions)

	if res != (SweepResult{}) {
		log.Debug().
			Int64("challenges", res.Challenges).
			Int64("authorization_codes", res.AuthCodes).
			Int64("sessions", res.Sessions).
			Msg("Sweep completed")
	}

	return res, firstErr
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("Sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")

			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
