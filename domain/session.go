package domain

import "time"

// Session represents a login of a verified subject into one client application.
// Active=false is terminal: every token derived from the session fails verification.
type Session struct {
	ID               string            `bson:"_id"                json:"id"`
	Subject          string            `bson:"subject"            json:"subject"` // Provider qualified, e.g. "wallet:5Grw..."
	ClientID         string            `bson:"client_id"          json:"client_id"`
	Fingerprint      string            `bson:"fingerprint"        json:"fingerprint"`
	AccessTokenID    string            `bson:"access_token_id"    json:"access_token_id,omitempty"`
	RefreshTokenID   string            `bson:"refresh_token_id"   json:"refresh_token_id,omitempty"`
	AccessExpiresAt  time.Time         `bson:"access_expires_at"  json:"access_expires_at"`
	RefreshExpiresAt time.Time         `bson:"refresh_expires_at" json:"refresh_expires_at"`
	Claims           map[string]string `bson:"claims,omitempty"   json:"claims,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"         json:"created_at"`
	LastUsedAt       time.Time         `bson:"last_used_at"       json:"last_used_at"`
	Active           bool              `bson:"active"             json:"active"`
}

// SessionTokens carries the token ids and expiries written on issue and refresh.
type SessionTokens struct {
	AccessTokenID    string
	RefreshTokenID   string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	// PreviousRefreshTokenID, when set, makes the update conditional on the stored
	// refresh token id so that a refresh token rotates at most once.
	PreviousRefreshTokenID string
}

// SessionFilter narrows ListSessions results.
type SessionFilter struct {
	Subject    string
	ClientID   string
	ActiveOnly bool
}
