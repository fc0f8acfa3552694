package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes surfaced to API clients.
const (
	TextCodeDuplicateIdentity    = "DUPLICATE_IDENTITY"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeTokenMissing         = "AUTH_TOKEN_MISSING"
	TextCodeTokenMalformed       = "AUTH_TOKEN_MALFORMED"
	TextCodeTokenExpired         = "AUTH_TOKEN_EXPIRED"
	TextCodeInsufficientRole     = "INSUFFICIENT_ROLE"
	TextCodeNotResourceOwner     = "NOT_RESOURCE_OWNER"
	TextCodeWrongPassword        = "WRONG_PASSWORD"
	TextCodeRecoveryCodeInvalid  = "RECOVERY_CODE_INVALID"
	TextCodeRecoveryTokenInvalid = "RECOVERY_TOKEN_INVALID"
)

// ErrDuplicateIdentity is returned when a registration reuses a username or
// email. The public API reports it as a 400 like the rest of the backend.
var ErrDuplicateIdentity = goerrors.New("username or email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials covers both unknown identifiers and failed password
// verification so the two cases are indistinguishable to callers.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword signals a bcrypt comparison failure.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMissing is returned when a protected route gets no Authorization header.
var ErrTokenMissing = goerrors.New("no authentication token provided", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when the header is not exactly `Bearer <token>`
// or the token cannot be parsed.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their 7-day window.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is returned by the role guard when no identity was
// attached, i.e. the guard ran without the authenticator in front of it.
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrInsufficientRole is returned when an authenticated role is outside the
// required set.
var ErrInsufficientRole = goerrors.New("you do not have permission to access this resource", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(goerrors.CodeForbidden)

// ErrNotResourceOwner rejects operations on another identity's account.
var ErrNotResourceOwner = goerrors.New("you can only modify your own account", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotResourceOwner).
	WithCode(goerrors.CodeForbidden)

// ErrWrongPassword is returned when the current password fails verification
// during a password change.
var ErrWrongPassword = goerrors.New("current password is incorrect", goerrors.CategoryValidation).
	WithTextCode(TextCodeWrongPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrRecoveryCodeInvalid covers absent, mismatched, and lapsed verification
// codes with one indistinct message.
var ErrRecoveryCodeInvalid = goerrors.New("invalid or expired verification code", goerrors.CategoryValidation).
	WithTextCode(TextCodeRecoveryCodeInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrRecoveryTokenInvalid covers unknown and lapsed reset tokens with one
// indistinct message.
var ErrRecoveryTokenInvalid = goerrors.New("invalid or expired reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeRecoveryTokenInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// wrapInternal converts a collaborator failure into an Internal error at the
// handler boundary without leaking storage or transport detail.
func wrapInternal(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}
