package domain

import "time"

// IdentityProvider holds the configuration of an external OpenID Connect provider.
type IdentityProvider struct {
	Name         string        `mapstructure:"name"          yaml:"name"`   // Subject prefix, e.g. "google"
	IssuerURL    string        `mapstructure:"issuer"        yaml:"issuer"` // e.g. https://accounts.google.com
	ClientID     string        `mapstructure:"client_id"     yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"  yaml:"redirect_url"`
	Scopes       []string      `mapstructure:"scopes"        yaml:"scopes"`
	AuthURL      string        `mapstructure:"auth_url"      yaml:"auth_url"`     // Optional, discovered or well known otherwise
	TokenURL     string        `mapstructure:"token_url"     yaml:"token_url"`    // Optional
	UserInfoURL  string        `mapstructure:"userinfo_url"  yaml:"userinfo_url"` // Optional
	JWKSURL      string        `mapstructure:"jwks_url"      yaml:"jwks_url"`     // Optional, skips discovery when set
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl" yaml:"challenge_ttl"`
}
