package federation

import "errors"

var (
	ErrProviderNotFound      = errors.New("provider not found or not enabled")
	ErrExchangeCodeFailed    = errors.New("failed to exchange authorization code for token")
	ErrMissingIDToken        = errors.New("token response carries no id_token")
	ErrInvalidIDToken        = errors.New("id token verification failed")
	ErrNonceMismatch         = errors.New("id token nonce mismatch")
	ErrFetchUserInfoFailed   = errors.New("failed to fetch user info from provider")
	ErrProviderMisconfigured = errors.New("provider is misconfigured")
)
