// Package telegram validates Telegram Login Widget assertions.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxAuthAge = 5 * time.Minute
	// FutureSkew tolerates clocks running slightly ahead of ours.
	FutureSkew = 30 * time.Second
)

var (
	ErrMissingHash   = errors.New("telegram: missing hash")
	ErrHashMismatch  = errors.New("telegram: hash mismatch")
	ErrAuthDate      = errors.New("telegram: invalid auth_date")
	ErrAuthExpired   = errors.New("telegram: assertion too old")
	ErrAuthInFuture  = errors.New("telegram: auth_date in the future")
	ErrNotConfigured = errors.New("telegram: bot token not configured")
)

// Assertion is the signed user payload produced by the login widget.
type Assertion struct {
	ID        int64  `json:"id"         form:"id"         binding:"required"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name"  form:"last_name"`
	Username  string `json:"username"   form:"username"`
	PhotoURL  string `json:"photo_url"  form:"photo_url"`
	AuthDate  int64  `json:"auth_date"  form:"auth_date"  binding:"required"`
	Hash      string `json:"hash"       form:"hash"       binding:"required"`
}

// Fields returns the signed fields; empty optional fields are omitted like the widget does.
func (a Assertion) Fields() map[string]string {
	fields := map[string]string{
		"id":        strconv.FormatInt(a.ID, 10),
		"auth_date": strconv.FormatInt(a.AuthDate, 10),
	}

	if a.FirstName != "" {
		fields["first_name"] = a.FirstName
	}

	if a.LastName != "" {
		fields["last_name"] = a.LastName
	}

	if a.Username != "" {
		fields["username"] = a.Username
	}

	if a.PhotoURL != "" {
		fields["photo_url"] = a.PhotoURL
	}

	return fields
}

// DataCheckString joins every field except hash as sorted key=value lines.
func DataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))

	for k := range fields {
		if k == "hash" {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	return strings.Join(lines, "\n")
}

// Sign computes the hex HMAC the widget attaches for the given bot token.
func Sign(botToken string, fields map[string]string) string {
	secret := sha256.Sum256([]byte(botToken))

	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(DataCheckString(fields)))

	return hex.EncodeToString(mac.Sum(nil))
}

// Validator checks assertions against one bot token.
type Validator struct {
	botToken   string
	maxAuthAge time.Duration
	now        func() time.Time
}

// NewValidator creates a validator. A non-positive maxAuthAge selects DefaultMaxAuthAge.
func NewValidator(botToken string, maxAuthAge time.Duration) *Validator {
	if maxAuthAge <= 0 {
		maxAuthAge = DefaultMaxAuthAge
	}

	return &Validator{
		botToken:   botToken,
		maxAuthAge: maxAuthAge,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now

	return v
}

// Validate verifies the HMAC and freshness of an assertion.
func (v *Validator) Validate(a Assertion) error {
	if v.botToken == "" {
		return ErrNotConfigured
	}

	if a.Hash == "" {
		return ErrMissingHash
	}

	expected := Sign(v.botToken, a.Fields())
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(a.Hash))) {
		return ErrHashMismatch
	}

	if a.AuthDate <= 0 {
		return ErrAuthDate
	}

	authAt := time.Unix(a.AuthDate, 0)
	now := v.now()

	if authAt.After(now.Add(FutureSkew)) {
		return fmt.Errorf("%w: %s ahead", ErrAuthInFuture, authAt.Sub(now))
	}

	if now.Sub(authAt) > v.maxAuthAge {
		return fmt.Errorf("%w: age %s", ErrAuthExpired, now.Sub(authAt).Truncate(time.Second))
	}

	return nil
}
