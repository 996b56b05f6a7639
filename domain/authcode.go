package domain

import "time"

// AuthorizationCode is a short-lived, single-use code exchanged once for a token pair.
// Only the SHA-256 hash of the code is persisted.
type AuthorizationCode struct {
	CodeHash  string    `bson:"_id"        json:"code_hash"`
	Subject   string    `bson:"subject"    json:"subject"`
	ClientID  string    `bson:"client_id"  json:"client_id"`
	SessionID string    `bson:"session_id" json:"session_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	Used      bool      `bson:"used"       json:"used"`
}

// IsExpired reports whether the code deadline passed at now.
func (a *AuthorizationCode) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
