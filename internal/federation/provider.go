package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ExternalUserInfo holds standardized user information retrieved from an external OAuth2 provider.
type ExternalUserInfo struct {
	ProviderUserID string // Unique ID of the user within the external provider (e.g., Google's 'sub')
	Email          string
	EmailVerified  bool
	Name           string
	FirstName      string
	LastName       string
	PictureURL     string
	RawData        map[string]any
}

// IDTokenClaims are the verified claims of an OpenID Connect ID token.
type IDTokenClaims struct {
	Issuer        string
	Subject       string
	Nonce         string
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// OAuth2Provider defines the interface for an external OpenID Connect identity provider.
type OAuth2Provider interface {
	// Name returns the unique identifier for the provider (e.g., "google"). It prefixes subjects.
	Name() string

	// AuthCodeURL builds the authorization URL carrying state, nonce and the S256 code challenge.
	AuthCodeURL(state, nonce, codeChallenge string) (string, error)

	// Exchange redeems an authorization code, sending the PKCE code verifier.
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// VerifyIDToken checks signature, issuer, audience and expiry of a raw ID token.
	VerifyIDToken(ctx context.Context, rawIDToken string) (*IDTokenClaims, error)

	// FetchUserInfo uses an access token to retrieve user information from the provider.
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error)
}

// BaseProvider implements OAuth2Provider for any standards-compliant OIDC issuer.
type BaseProvider struct {
	Config   *domain.IdentityProvider
	endpoint oauth2.Endpoint
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// ProviderOption customises a BaseProvider.
type ProviderOption func(*BaseProvider)

// WithKeySet verifies ID tokens against a fixed key set instead of the issuer's JWKS.
func WithKeySet(keySet oidc.KeySet) ProviderOption {
	return func(b *BaseProvider) {
		b.verifier = oidc.NewVerifier(b.Config.IssuerURL, keySet, &oidc.Config{ClientID: b.Config.ClientID})
	}
}

// WithHTTPClient sets the client used for token, JWKS and userinfo calls.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(b *BaseProvider) {
		b.client = client
	}
}

// NewBaseProvider builds a provider. Endpoints missing from the configuration are discovered
// from the issuer's /.well-known/openid-configuration document.
func NewBaseProvider(ctx context.Context, idpConfig *domain.IdentityProvider, opts ...ProviderOption) (*BaseProvider, error) {
	if idpConfig.Name == "" || idpConfig.ClientID == "" || idpConfig.IssuerURL == "" {
		return nil, ErrProviderMisconfigured
	}

	b := &BaseProvider{
		Config: idpConfig,
		endpoint: oauth2.Endpoint{
			AuthURL:  idpConfig.AuthURL,
			TokenURL: idpConfig.TokenURL,
		},
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(b)
	}

	ctx = oidc.ClientContext(ctx, b.client)

	needsDiscovery := b.endpoint.AuthURL == "" || b.endpoint.TokenURL == "" ||
		(b.verifier == nil && idpConfig.JWKSURL == "")

	if needsDiscovery {
		discovered, err := oidc.NewProvider(ctx, idpConfig.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("%w: discovery for %s: %v", ErrProviderMisconfigured, idpConfig.Name, err)
		}

		if b.endpoint.AuthURL == "" {
			b.endpoint.AuthURL = discovered.Endpoint().AuthURL
		}

		if b.endpoint.TokenURL == "" {
			b.endpoint.TokenURL = discovered.Endpoint().TokenURL
		}

		if idpConfig.UserInfoURL == "" {
			idpConfig.UserInfoURL = discovered.UserInfoEndpoint()
		}

		if b.verifier == nil {
			b.verifier = discovered.Verifier(&oidc.Config{ClientID: idpConfig.ClientID})
		}
	}

	if b.verifier == nil {
		keySet := oidc.NewRemoteKeySet(ctx, idpConfig.JWKSURL)
		b.verifier = oidc.NewVerifier(idpConfig.IssuerURL, keySet, &oidc.Config{ClientID: idpConfig.ClientID})
	}

	return b, nil
}

func (b *BaseProvider) Name() string {
	return b.Config.Name
}

// OAuth2Config returns the oauth2.Config for this provider.
func (b *BaseProvider) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.Config.ClientID,
		ClientSecret: b.Config.ClientSecret,
		RedirectURL:  b.Config.RedirectURL,
		Scopes:       b.Config.Scopes,
		Endpoint:     b.endpoint,
	}
}

func (b *BaseProvider) AuthCodeURL(state, nonce, codeChallenge string) (string, error) {
	if b.endpoint.AuthURL == "" {
		return "", ErrProviderMisconfigured
	}

	return b.OAuth2Config().AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", domain.CodeChallengeMethodS256),
	), nil
}

func (b *BaseProvider) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)

	token, err := b.OAuth2Config().Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeCodeFailed, err)
	}

	return token, nil
}

func (b *BaseProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*IDTokenClaims, error) {
	ctx = oidc.ClientContext(ctx, b.client)

	idToken, err := b.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	claims := &IDTokenClaims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	claims.Issuer = idToken.Issuer
	claims.Subject = idToken.Subject
	claims.Nonce = idToken.Nonce

	return claims, nil
}

// FetchUserInfo reads the standard OIDC userinfo document.
func (b *BaseProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	if b.Config.UserInfoURL == "" {
		return nil, fmt.Errorf("%w: no userinfo endpoint", ErrFetchUserInfoFailed)
	}

	return fetchStandardUserInfo(ctx, b.OAuth2Config().Client(context.WithValue(ctx, oauth2.HTTPClient, b.client), token), b.Config.UserInfoURL)
}

func fetchStandardUserInfo(ctx context.Context, client *http.Client, endpoint string) (*ExternalUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchUserInfoFailed, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetchUserInfoFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchUserInfoFailed, resp.StatusCode)
	}

	var info struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}

	if err := json.Unmarshal(rawBody, &info); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrFetchUserInfoFailed, err)
	}

	var raw map[string]any
	_ = json.Unmarshal(rawBody, &raw)

	return &ExternalUserInfo{
		ProviderUserID: info.Sub,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           info.Name,
		FirstName:      info.GivenName,
		LastName:       info.FamilyName,
		PictureURL:     info.Picture,
		RawData:        raw,
	}, nil
}

var _ OAuth2Provider = (*BaseProvider)(nil)
