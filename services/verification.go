package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/audit"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/CoachCoe/polkadot-sso/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeUsed     = errors.New("challenge already used")
	ErrProviderMismatch  = errors.New("challenge was issued for another provider")
	ErrStateMismatch     = errors.New("state mismatch")
	ErrVerifierMismatch  = errors.New("code verifier does not match challenge")
	ErrSubjectMismatch   = errors.New("address does not match subject hint")
	ErrUnsupportedProver = errors.New("no verifier registered for provider")
)

// Identity is the verified subject of a challenge.
type Identity struct {
	Subject     string
	ClientID    string
	ChallengeID string
	Claims      map[string]string
}

// Proof is the caller supplied evidence for one challenge.
type Proof interface {
	ProviderKind() domain.ProviderKind
	CallerState() string
}

// ProofVerifier checks provider specific evidence against a challenge.
// It must not mutate the challenge; claiming is done by the engine.
type ProofVerifier interface {
	Kind() domain.ProviderKind
	VerifyProof(ctx context.Context, challenge *domain.Challenge, proof Proof) (*Identity, error)
}

// VerificationEngine runs the shared challenge lifecycle around the provider verifiers.
type VerificationEngine struct {
	challenges *ChallengeService
	verifiers  map[domain.ProviderKind]ProofVerifier
	metrics    *metrics.Metrics
	audit      audit.Sink
	now        func() time.Time
}

func NewVerificationEngine(
	challenges *ChallengeService,
	m *metrics.Metrics,
	sink audit.Sink,
	verifiers ...ProofVerifier,
) *VerificationEngine {
	if sink == nil {
		sink = audit.Nop{}
	}

	e := &VerificationEngine{
		challenges: challenges,
		verifiers:  make(map[domain.ProviderKind]ProofVerifier, len(verifiers)),
		metrics:    m,
		audit:      sink,
		now:        time.Now,
	}

	for _, v := range verifiers {
		e.verifiers[v.Kind()] = v
	}

	return e
}

// Verify checks proof against the challenge named by challengeRef (id or state) and
// consumes the challenge. Every failure is returned as the same AuthenticationError.
func (e *VerificationEngine) Verify(ctx context.Context, challengeRef string, proof Proof) (*Identity, error) {
	kind := proof.ProviderKind()

	ctx, span := tracing.Tracer.Start(ctx, "VerificationEngine.Verify")
	defer span.End()

	span.SetAttributes(attribute.String("sso.provider", string(kind)))

	identity, challenge, err := e.verify(ctx, challengeRef, proof)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")

		// Infrastructure failures keep their own kind; proof failures are uniform.
		if !serrors.IsKind(err, serrors.KindDatabase) && !serrors.IsKind(err, serrors.KindServiceUnavailable) {
			err = serrors.NewAuthentication(err)
		}

		log.Warn().
			Err(err).
			Str("challenge_ref", challengeRef).
			Str("provider", string(kind)).
			Msg("Verification failed")

		e.metrics.Verification(string(kind), false)

		event := audit.Event{Action: "challenge.verify", Target: challengeRef, Details: string(kind)}
		if challenge != nil {
			event.ClientID = challenge.ClientID
			event.Target = challenge.ID
		}

		e.audit.Record(ctx, event.Failure(err))

		return nil, err
	}

	e.metrics.Verification(string(kind), true)
	e.audit.Record(ctx, audit.Event{
		Action:   "challenge.verify",
		Subject:  identity.Subject,
		ClientID: identity.ClientID,
		Target:   identity.ChallengeID,
		Details:  string(kind),
		Success:  true,
	})

	log.Info().
		Str("challenge_id", identity.ChallengeID).
		Str("subject", identity.Subject).
		Str("client_id", identity.ClientID).
		Msg("Challenge verified")

	return identity, nil
}

func (e *VerificationEngine) verify(ctx context.Context, ref string, proof Proof) (*Identity, *domain.Challenge, error) {
	challenge, err := e.challenges.Get(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	if challenge.IsExpired(e.now()) {
		return nil, challenge, ErrChallengeExpired
	}

	if challenge.Used {
		return nil, challenge, ErrChallengeUsed
	}

	if challenge.Provider != proof.ProviderKind() {
		return nil, challenge, ErrProviderMismatch
	}

	if !crypto.ConstantTimeEqual(challenge.State, proof.CallerState()) {
		return nil, challenge, ErrStateMismatch
	}

	verifier, ok := e.verifiers[challenge.Provider]
	if !ok {
		return nil, challenge, serrors.NewServiceUnavailable("login provider not enabled",
			fmt.Errorf("%w: %s", ErrUnsupportedProver, challenge.Provider))
	}

	identity, err := verifier.VerifyProof(ctx, challenge, proof)
	if err != nil {
		return nil, challenge, err
	}

	claimed, err := e.challenges.Claim(ctx, challenge.ID)
	if err != nil {
		return nil, challenge, err
	}

	if !claimed {
		return nil, challenge, ErrChallengeUsed
	}

	identity.ClientID = challenge.ClientID
	identity.ChallengeID = challenge.ID

	return identity, challenge, nil
}
