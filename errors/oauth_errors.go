package errors

import "fmt"

// OAuth2Error is the JSON body written for every failed request.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest         = "invalid_request"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidClient          = "invalid_client"
	InvalidGrant           = "invalid_grant"
	InvalidToken           = "invalid_token"
	NotFoundCode           = "not_found"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
	SlowDown               = "slow_down"
)

func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}

func NewSlowDown() *OAuth2Error {
	return &OAuth2Error{
		Code:        SlowDown,
		Description: "too many requests",
	}
}

// ToOAuth2 converts any error into the wire body. Unknown errors never leak their text.
func ToOAuth2(err error) *OAuth2Error {
	e, ok := As(err)
	if !ok {
		return &OAuth2Error{Code: ServerError, Description: "internal server error"}
	}

	var code string

	switch e.Kind {
	case KindValidation:
		code = InvalidRequest
	case KindAuthentication:
		code = AccessDenied
	case KindInvalidClient:
		code = InvalidClient
	case KindNotFound:
		code = NotFoundCode
	case KindInvalidGrant:
		code = InvalidGrant
	case KindTokenInvalid:
		code = InvalidToken
	case KindServiceUnavailable:
		code = TemporarilyUnavailable
	default:
		return &OAuth2Error{Code: ServerError, Description: "internal server error"}
	}

	return &OAuth2Error{Code: code, Description: e.Message}
}
