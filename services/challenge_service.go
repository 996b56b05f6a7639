package services

import (
	"context"
	"errors"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/federation"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/CoachCoe/polkadot-sso/internal/wallet"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultChallengeTTL = 5 * time.Minute

// ChallengeConfig configures challenge issuance.
type ChallengeConfig struct {
	TTL time.Duration
	// ProviderTTL overrides TTL per provider name ("wallet", "telegram" or an OAuth provider name).
	ProviderTTL map[string]time.Duration

	WalletDomain    string
	WalletURI       string
	WalletStatement string
	WalletChainID   string

	TelegramEnabled bool
}

// CreateChallengeRequest asks for a new challenge.
type CreateChallengeRequest struct {
	ClientID     string
	SubjectHint  string
	Provider     domain.ProviderKind
	ProviderName string
}

// ChallengeService issues, looks up and claims login challenges.
type ChallengeService struct {
	repo      domain.ChallengeRepository
	clients   ClientDirectory
	providers *federation.Registry
	cfg       ChallengeConfig
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewChallengeService(
	repo domain.ChallengeRepository,
	clients ClientDirectory,
	providers *federation.Registry,
	cfg ChallengeConfig,
	m *metrics.Metrics,
) *ChallengeService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultChallengeTTL
	}

	return &ChallengeService{
		repo:      repo,
		clients:   clients,
		providers: providers,
		cfg:       cfg,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *ChallengeService) ttlFor(name string) time.Duration {
	if ttl, ok := s.cfg.ProviderTTL[name]; ok && ttl > 0 {
		return ttl
	}

	return s.cfg.TTL
}

// Create issues a challenge bound to a fresh PKCE pair.
func (s *ChallengeService) Create(ctx context.Context, req CreateChallengeRequest) (*domain.Challenge, error) {
	if req.Provider == "" {
		req.Provider = domain.ProviderWallet
	}

	if !req.Provider.Valid() {
		return nil, serrors.NewValidation("unsupported provider")
	}

	c, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	verifier, err := crypto.RandomBase64URL(32)
	if err != nil {
		return nil, err
	}

	state, err := crypto.RandomBase64URL(16)
	if err != nil {
		return nil, err
	}

	nonce, err := crypto.RandomHex(32)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	challenge := &domain.Challenge{
		ID:                  uuid.NewString(),
		Provider:            req.Provider,
		ClientID:            c.ID,
		SubjectHint:         req.SubjectHint,
		CodeVerifier:        verifier,
		CodeChallenge:       crypto.S256Challenge(verifier),
		CodeChallengeMethod: domain.CodeChallengeMethodS256,
		State:               state,
		Nonce:               nonce,
		CreatedAt:           now,
	}

	switch req.Provider {
	case domain.ProviderWallet:
		if req.SubjectHint != "" {
			if _, err := wallet.DecodeAddress(req.SubjectHint); err != nil {
				return nil, serrors.NewValidation("subject_hint is not a valid SS58 address")
			}
		}

		challenge.ExpiresAt = now.Add(s.ttlFor(string(domain.ProviderWallet)))
		challenge.Message = wallet.Statement{
			Domain:         s.cfg.WalletDomain,
			Address:        req.SubjectHint,
			Statement:      s.cfg.WalletStatement,
			URI:            s.cfg.WalletURI,
			ChainID:        s.cfg.WalletChainID,
			Nonce:          nonce,
			IssuedAt:       now,
			ExpirationTime: challenge.ExpiresAt,
			RequestID:      challenge.ID,
			Resources:      []string{c.RedirectURL},
		}.String()

	case domain.ProviderOAuth2:
		provider, err := s.providers.Get(req.ProviderName)
		if err != nil {
			return nil, serrors.NewServiceUnavailable("identity provider not configured", err)
		}

		challenge.ProviderName = provider.Name()
		challenge.ExpiresAt = now.Add(s.ttlFor(provider.Name()))

		challenge.RedirectURL, err = provider.AuthCodeURL(state, nonce, challenge.CodeChallenge)
		if err != nil {
			return nil, serrors.NewServiceUnavailable("identity provider misconfigured", err)
		}

	case domain.ProviderTelegram:
		if !s.cfg.TelegramEnabled {
			return nil, serrors.NewServiceUnavailable("telegram login not configured", nil)
		}

		challenge.ExpiresAt = now.Add(s.ttlFor(string(domain.ProviderTelegram)))
	}

	if err := s.repo.CreateChallenge(ctx, challenge); err != nil {
		return nil, serrors.NewDatabase("store challenge", err)
	}

	s.metrics.ChallengeCreated(string(req.Provider))

	log.Debug().
		Str("challenge_id", challenge.ID).
		Str("client_id", challenge.ClientID).
		Str("provider", string(challenge.Provider)).
		Time("expires_at", challenge.ExpiresAt).
		Msg("Challenge created")

	return challenge, nil
}

// Get finds a challenge by id, falling back to its state.
func (s *ChallengeService) Get(ctx context.Context, idOrState string) (*domain.Challenge, error) {
	if idOrState == "" {
		return nil, serrors.NewNotFound("challenge not found")
	}

	c, err := s.repo.GetChallenge(ctx, idOrState)
	if errors.Is(err, domain.ErrNotFound) {
		c, err = s.repo.GetChallengeByState(ctx, idOrState)
	}

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, serrors.NewNotFound("challenge not found")
		}

		return nil, serrors.NewDatabase("load challenge", err)
	}

	return c, nil
}

// Claim marks the challenge used. Only one caller ever receives true.
func (s *ChallengeService) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.ClaimChallenge(ctx, id)
	if err != nil {
		return false, serrors.NewDatabase("claim challenge", err)
	}

	return ok, nil
}

// CleanupExpired deletes expired, unclaimed challenges.
func (s *ChallengeService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredChallenges(ctx, s.now())
	if err != nil {
		return 0, serrors.NewDatabase("delete expired challenges", err)
	}

	return n, nil
}
