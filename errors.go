package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	TextCodeRateLimited         = "AUTH_RATE_LIMITED"
	TextCodeEmailInUse          = "AUTH_EMAIL_IN_USE"
	TextCodeInvalidInput        = "AUTH_INVALID_INPUT"
	TextCodeAuthUnknown         = "AUTH_UNKNOWN"
	TextCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	TextCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	TextCodeProfileFetchFailed  = "PROFILE_FETCH_FAILED"
	TextCodeProvisioningFailed  = "PROVISIONING_FAILED"
)

// ErrInvalidCredentials is returned when email and password do not match
var ErrInvalidCredentials = goerrors.New("invalid login credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrRateLimited is returned after too many failed attempts inside the cool down window
var ErrRateLimited = goerrors.New("too many requests, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(429)

// ErrEmailAlreadyInUse is returned by sign up when the email is registered
var ErrEmailAlreadyInUse = goerrors.New("user already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrInvalidInput is returned when sign up or sign in payloads fail validation
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrAuthUnknown covers provider failures we can not classify
var ErrAuthUnknown = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthUnknown).
	WithCode(goerrors.CodeInternal)

// ErrProviderUnavailable is the transport/availability failure of the identity provider
var ErrProviderUnavailable = goerrors.New("identity provider unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeProviderUnavailable).
	WithCode(503)

// ErrProfileNotFound is returned by profile stores for missing records
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoIdentity is returned when an operation needs a signed in user
var ErrNoIdentity = goerrors.New("no signed in identity", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthUnknown).
	WithCode(goerrors.CodeUnauthorized)

// ProviderError wraps a transport failure talking to the identity provider.
func ProviderError(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, message).
		WithTextCode(TextCodeProviderUnavailable).
		WithCode(503)
}

// ProfileFetchError wraps a profile store failure. It never reaches the
// presentation layer; the resolver recovers from it with a fallback profile.
func ProfileFetchError(err error, id string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch profile").
		WithTextCode(TextCodeProfileFetchFailed).
		WithMetadata(map[string]any{"profile_id": id})
}

// ProvisioningError wraps a failed profile backfill after sign up.
func ProvisioningError(err error, id string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to provision profile").
		WithTextCode(TextCodeProvisioningFailed).
		WithMetadata(map[string]any{"user_id": id})
}

// ErrorCode returns the text code of the outermost rich error in the chain,
// or TextCodeAuthUnknown for plain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return rich.TextCode
	}
	return TextCodeAuthUnknown
}

// HasErrorCode reports whether the error chain carries the given text code.
func HasErrorCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// IsProfileNotFound reports missing profile records
func IsProfileNotFound(err error) bool {
	if err == nil {
		return false
	}
	return HasErrorCode(err, TextCodeProfileNotFound) || goerrors.IsNotFound(err)
}

// UserMessage returns the human readable message shown inline by the
// presentation layer. Provider transport failures get a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch ErrorCode(err) {
	case TextCodeInvalidCredentials:
		return ErrInvalidCredentials.Message
	case TextCodeRateLimited:
		return ErrRateLimited.Message
	case TextCodeEmailInUse:
		return ErrEmailAlreadyInUse.Message
	case TextCodeProviderUnavailable:
		return "authentication service is unavailable, please try again"
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return err.Error()
}
