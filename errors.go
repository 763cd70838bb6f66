package access

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenAcquisition  = "token_acquisition_failed"
	TextCodeProvisioning      = "provisioning_rejected"
	TextCodeProfileRetrieval  = "profile_retrieval_failed"
	TextCodeUnauthorized      = "request_unauthorized"
	TextCodeTransport         = "transport_failure"
	TextCodeBackendRejected   = "backend_request_failed"
	TextCodeInvalidExpiration = "invalid_invite_expiration"
)

// ErrTokenAcquisition is returned when the provider session has fully expired
// and a silent refresh is no longer possible. Terminal: forces re-login.
var ErrTokenAcquisition = goerrors.New("unable to acquire access token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenAcquisition).
	WithCode(goerrors.CodeUnauthorized)

// ErrProvisioning is returned when the backend rejects user registration.
// The session stays authenticated; the user may retry.
var ErrProvisioning = goerrors.New("backend rejected user registration", goerrors.CategoryConflict).
	WithTextCode(TextCodeProvisioning).
	WithCode(goerrors.CodeConflict)

// ErrProfileRetrieval is returned for transient failures fetching the user
// profile. The session stays authenticated.
var ErrProfileRetrieval = goerrors.New("unable to retrieve user profile", goerrors.CategoryOperation).
	WithTextCode(TextCodeProfileRetrieval)

// ErrUnauthorized is returned for a 401 response. The gateway has already
// invalidated the stored token; re-login is the caller's decision.
var ErrUnauthorized = goerrors.New("session credentials rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrTransport is returned when no response was received at all.
var ErrTransport = goerrors.New("network error, please check your connection", goerrors.CategoryOperation).
	WithTextCode(TextCodeTransport)

// ErrBackend is the base error for structured backend failures other than 401.
// The message is replaced with the response payload's error field when present.
var ErrBackend = goerrors.New("backend request failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeBackendRejected)

// ErrInvalidExpiration is returned before any network call when an invite
// expiration is outside the allowed set.
var ErrInvalidExpiration = goerrors.New("invite expiration must be 1, 3, 7, 14 or 30 days", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidExpiration).
	WithCode(goerrors.CodeBadRequest)

// HasTextCode reports whether err carries the given taxonomy text code.
func HasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// IsUnauthorized will check for gateway 401 errors.
func IsUnauthorized(err error) bool {
	return HasTextCode(err, TextCodeUnauthorized)
}

// IsTransport will check for transport-level failures.
func IsTransport(err error) bool {
	return HasTextCode(err, TextCodeTransport)
}

// IsTokenAcquisition will check for terminal token refresh failures.
func IsTokenAcquisition(err error) bool {
	return HasTextCode(err, TextCodeTokenAcquisition)
}

// StatusCode returns the HTTP status recorded on a gateway error, 0 when the
// error carries none (e.g. a transport failure).
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return 0
	}
	if status, ok := richErr.Metadata["status"].(int); ok {
		return status
	}
	return 0
}

// ResponseMessage returns the backend's structured error message recorded on
// a gateway error, "" when none was present.
func ResponseMessage(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	if msg, ok := richErr.Metadata["response_message"].(string); ok {
		return msg
	}
	return ""
}
