package auth

import "net/http"

// Kind classifies why a request was refused.
type Kind int

const (
	MissingCredential Kind = iota + 1
	InvalidAPIKey
	ExpiredOrFutureTimestamp
	InvalidSignature
)

func (k Kind) String() string {
	switch k {
	case MissingCredential:
		return "missing_credential"
	case InvalidAPIKey:
		return "invalid_api_key"
	case ExpiredOrFutureTimestamp:
		return "expired_or_future_timestamp"
	case InvalidSignature:
		return "invalid_signature"
	}
	return "unknown"
}

// Error is returned by the gate for every refused request.
// Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Rule    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// SuggestedResponseCode gives a HTTP status code.
func (e *Error) SuggestedResponseCode() int { return http.StatusUnauthorized }

// Is matches on Kind and Message so callers can compare against the
// package's sentinel values regardless of which rule produced the error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

var (
	ErrAPIKeyRequired    = &Error{Kind: MissingCredential, Message: "API key is required. Provide X-API-Key header."}
	ErrInvalidAPIKey     = &Error{Kind: InvalidAPIKey, Message: "Invalid API key"}
	ErrUserIDRequired    = &Error{Kind: MissingCredential, Message: "X-User-Id header is required"}
	ErrSignatureRequired = &Error{Kind: MissingCredential, Message: "X-Signature header is required"}
	ErrTimestampRequired = &Error{Kind: MissingCredential, Message: "X-Timestamp header is required"}
	ErrTimestampInvalid  = &Error{Kind: ExpiredOrFutureTimestamp, Message: "X-Timestamp header must be epoch milliseconds"}
	ErrReplay            = &Error{Kind: ExpiredOrFutureTimestamp, Message: "Request timestamp is too old. Possible replay attack."}
	ErrInvalidSignature  = &Error{Kind: InvalidSignature, Message: "Invalid signature. Request may have been tampered with."}
)
