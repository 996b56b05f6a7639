package federation

import (
	"context"

	"github.com/CoachCoe/polkadot-sso/domain"
	googleOAuth2 "golang.org/x/oauth2/google"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// NewGoogleProvider fills in Google's well-known endpoints so no discovery round-trip is needed.
func NewGoogleProvider(ctx context.Context, idpConfig *domain.IdentityProvider, opts ...ProviderOption) (*BaseProvider, error) {
	if idpConfig.Name == "" {
		idpConfig.Name = "google"
	}

	if idpConfig.IssuerURL == "" {
		idpConfig.IssuerURL = GoogleIssuer
	}

	if idpConfig.AuthURL == "" {
		idpConfig.AuthURL = googleOAuth2.Endpoint.AuthURL
	}

	if idpConfig.TokenURL == "" {
		idpConfig.TokenURL = googleOAuth2.Endpoint.TokenURL
	}

	if idpConfig.UserInfoURL == "" {
		idpConfig.UserInfoURL = GoogleUserInfoEndpoint
	}

	if idpConfig.JWKSURL == "" {
		idpConfig.JWKSURL = GoogleJWKSURL
	}

	idpConfig.Scopes = ensureScopes(idpConfig.Scopes, "openid", "email", "profile")

	return NewBaseProvider(ctx, idpConfig, opts...)
}

func ensureScopes(scopes []string, required ...string) []string {
	have := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		have[s] = true
	}

	for _, r := range required {
		if !have[r] {
			scopes = append(scopes, r)
		}
	}

	return scopes
}
