package accounts

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeEmailExists flags duplicate registrations
	TextCodeEmailExists = "EMAIL_ALREADY_EXISTS"
	// TextCodeWeakPassword flags passwords failing the strength policy
	TextCodeWeakPassword = "WEAK_PASSWORD"
	// TextCodePasswordMismatch flags a confirmation that does not match
	TextCodePasswordMismatch = "PASSWORD_MISMATCH"
	// TextCodeInvalidToken covers malformed, expired, and consumed tokens;
	// it deliberately never distinguishes "account does not exist"
	TextCodeInvalidToken = "INVALID_OR_EXPIRED_TOKEN"
	// TextCodeAccountNotActive flags login against an unactivated account
	TextCodeAccountNotActive = "ACCOUNT_NOT_ACTIVE"
	// TextCodeEmailNotVerified flags login before verification
	TextCodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	// TextCodeInvalidCredentials flags a failed credential check
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeMailDelivery flags a mail failure after a committed state change
	TextCodeMailDelivery = "MAIL_DELIVERY_FAILED"
	// TextCodeStorageConflict flags a concurrent-update race, safe to retry once
	TextCodeStorageConflict = "STORAGE_CONFLICT"
	// TextCodeTokenExpired flags an expired session token
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags a session token that failed to parse
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
)

// NewEmailAlreadyExistsError is returned when registering an email already
// in use. Constructed per call so attached metadata never leaks between
// concurrent requests.
func NewEmailAlreadyExistsError(email string) *goerrors.Error {
	return goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
		WithTextCode(TextCodeEmailExists).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"email": email,
		})
}

// NewWeakPasswordError is returned when a password fails the strength
// policy, carrying the failed rule as metadata.
func NewWeakPasswordError(reason string) *goerrors.Error {
	return goerrors.New("password does not meet strength requirements", goerrors.CategoryValidation).
		WithTextCode(TextCodeWeakPassword).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"reason": reason,
		})
}

// ErrPasswordMismatch is returned when a confirmation field does not match
var ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// NewAccountNotFoundError is internal only; it must never surface to a
// reset-requester, who always sees ErrInvalidOrExpiredToken instead
func NewAccountNotFoundError(email string) *goerrors.Error {
	return goerrors.New("account not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"email": email,
		})
}

// ErrInvalidOrExpiredToken is the single outward-facing token failure
var ErrInvalidOrExpiredToken = goerrors.New("link is invalid or has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotActive rejects logins against unactivated accounts
var ErrAccountNotActive = goerrors.New("account is not active, verify your email first", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotActive).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified rejects logins before email verification
var ErrEmailNotVerified = goerrors.New("email address has not been verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials covers unknown identifiers and bad passwords alike
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// NewMailDeliveryError reports a partial failure: the state transition is
// already committed and is never rolled back
func NewMailDeliveryError(metadata map[string]any) *goerrors.Error {
	return goerrors.New("could not deliver notification email", goerrors.CategoryOperation).
		WithTextCode(TextCodeMailDelivery).
		WithMetadata(metadata)
}

// ErrStorageConflict is surfaced by the storage layer on a concurrent
// update race; the service retries the transition exactly once
var ErrStorageConflict = goerrors.New("storage conflict, concurrent update detected", goerrors.CategoryConflict).
	WithTextCode(TextCodeStorageConflict).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password check fails
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for expired session tokens
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens that fail to parse
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// IsStorageConflict will check for concurrent-update conflicts
func IsStorageConflict(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == TextCodeStorageConflict
	}
	return false
}

// IsMailDeliveryError will check for partial mail failures so callers can
// show a degraded-success message instead of an error page
func IsMailDeliveryError(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == TextCodeMailDelivery
	}
	return false
}
