package domain

import "time"

// ProviderKind selects the trust mechanism a challenge is issued for.
type ProviderKind string

const (
	ProviderWallet   ProviderKind = "wallet"
	ProviderOAuth2   ProviderKind = "oauth2"
	ProviderTelegram ProviderKind = "telegram"
)

// Valid reports whether k is one of the supported provider kinds.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderWallet, ProviderOAuth2, ProviderTelegram:
		return true
	}
	return false
}

// CodeChallengeMethodS256 is the only PKCE method issued by this service.
const CodeChallengeMethodS256 = "S256"

// Challenge is a single-use, time-bounded login challenge bound to a PKCE pair.
type Challenge struct {
	ID                  string       `bson:"_id"                   json:"id"`
	Provider            ProviderKind `bson:"provider"              json:"provider"`
	ProviderName        string       `bson:"provider_name"         json:"provider_name,omitempty"` // e.g. "google" for oauth2
	ClientID            string       `bson:"client_id"             json:"client_id"`
	SubjectHint         string       `bson:"subject_hint"          json:"subject_hint,omitempty"`
	CodeVerifier        string       `bson:"code_verifier"         json:"-"`
	CodeChallenge       string       `bson:"code_challenge"        json:"code_challenge"`
	CodeChallengeMethod string       `bson:"code_challenge_method" json:"code_challenge_method"`
	State               string       `bson:"state"                 json:"state"`
	Nonce               string       `bson:"nonce"                 json:"nonce"`
	Message             string       `bson:"message"               json:"message,omitempty"`      // Wallet statement to sign
	RedirectURL         string       `bson:"redirect_url"          json:"redirect_url,omitempty"` // OAuth2 authorization URL
	CreatedAt           time.Time    `bson:"created_at"            json:"created_at"`
	ExpiresAt           time.Time    `bson:"expires_at"            json:"expires_at"`
	Used                bool         `bson:"used"                  json:"used"`
}

// IsExpired reports whether the challenge deadline passed at now.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
