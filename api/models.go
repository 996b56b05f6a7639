// Package api holds the JSON bodies of the HTTP surface.
package api

import "time"

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// ChallengeRequest asks for a login challenge. Provider is "wallet" (default),
// "telegram", or the name of a configured OpenID Connect provider.
type ChallengeRequest struct {
	ClientID     string `json:"client_id"              binding:"required"`
	SubjectHint  string `json:"subject_hint,omitempty"`
	Provider     string `json:"provider,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// ChallengeResponse is returned to the browser; it keeps the code verifier out of band.
type ChallengeResponse struct {
	ChallengeID  string    `json:"challenge_id"`
	Provider     string    `json:"provider"`
	Message      string    `json:"message,omitempty"`
	RedirectURL  string    `json:"redirect_url,omitempty"`
	CodeVerifier string    `json:"code_verifier"`
	State        string    `json:"state"`
	Nonce        string    `json:"nonce"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// WalletVerifyRequest carries a signed statement.
type WalletVerifyRequest struct {
	ChallengeID  string `json:"challenge_id"  binding:"required"`
	Address      string `json:"address"       binding:"required"`
	Signature    string `json:"signature"     binding:"required"`
	CodeVerifier string `json:"code_verifier" binding:"required"`
	State        string `json:"state"         binding:"required"`
}

// TelegramVerifyRequest is a Login Widget payload plus the challenge binding.
type TelegramVerifyRequest struct {
	ID           int64  `json:"id"                   binding:"required"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	AuthDate     int64  `json:"auth_date"            binding:"required"`
	Hash         string `json:"hash"                 binding:"required"`
	ChallengeID  string `json:"challenge_id"         binding:"required"`
	CodeVerifier string `json:"code_verifier"        binding:"required"`
	State        string `json:"state"                binding:"required"`
}

// RedirectResponse is returned instead of a 302 when the caller accepts JSON.
type RedirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// TokenRequest is a token endpoint request, form or JSON encoded.
type TokenRequest struct {
	GrantType    string `form:"grant_type"    json:"grant_type"`
	Code         string `form:"code"          json:"code"`
	RedirectURI  string `form:"redirect_uri"  json:"redirect_uri"`
	ClientID     string `form:"client_id"     json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SessionResponse describes the session behind a bearer token.
type SessionResponse struct {
	Subject   string            `json:"subject"`
	ClientID  string            `json:"client_id"`
	SessionID string            `json:"session_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	Claims    map[string]string `json:"claims,omitempty"`
}

// LogoutRequest names the session to end by access token or id.
type LogoutRequest struct {
	AccessToken string `json:"access_token,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}
