package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced alongside structured errors so web layers can key
// messages off stable identifiers.
const (
	// TextCodeDuplicateIdentity signals an email that is already registered
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	// TextCodeInvalidCreds is the generic login failure code
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeForbidden signals a capability check failure
	TextCodeForbidden = "FORBIDDEN"
	// TextCodeEmptyPassword signals an empty credential value
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeTokenExpired signals an expired reset token
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTooManyAttempts signals the login cooldown kicked in
	TextCodeTooManyAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	// TextCodeSessionNotFound signals a request without a session cookie
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeSessionDecodeError signals a session token we could not decode
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	// TextCodeClaimsMappingError signals claims we could not map to a session
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	// TextCodeDataParseError signals a payload we could not parse
	TextCodeDataParseError = "DATA_PARSE_ERROR"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateIdentity is returned when creating an account whose email is
// already registered (case-insensitive).
var ErrDuplicateIdentity = goerrors.New("email address is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is the only error login surfaces for bad email,
// bad password, missing credential, or inactive account. It never reveals
// which one failed.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword mirrors the bcrypt mismatch with the same
// generic message as ErrInvalidCredentials.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the acting identity lacks the capability
// for an admin-only operation.
var ErrForbidden = goerrors.New("insufficient permissions for this operation", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString rejects empty password values before hashing
var ErrNoEmptyString = goerrors.New("value should not be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyLoginAttempts is returned when an account exhausts its login
// attempts before the cooldown window closes.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToParseData is returned when a request payload cannot be bound
var ErrUnableToParseData = goerrors.New("unable to parse data", goerrors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(goerrors.CodeBadRequest)

// duplicateIdentityError builds a fresh ErrDuplicateIdentity carrying the
// colliding address, so the shared sentinel never accumulates metadata.
func duplicateIdentityError(email string) *goerrors.Error {
	return goerrors.New("email address is already registered", goerrors.CategoryConflict).
		WithTextCode(TextCodeDuplicateIdentity).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"email": email,
		})
}

// IsDuplicateIdentity reports whether err represents an email uniqueness
// violation, either our own sentinel or a constraint error escaping the
// store when two in flight requests race on the same address.
func IsDuplicateIdentity(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeDuplicateIdentity {
		return true
	}

	return isUniqueViolation(err)
}

// isUniqueViolation matches the driver level messages for a violated email
// unique constraint (sqlite and postgres spellings).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// ErrTokenExpired signals an expired session token
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed signals a token we could not parse
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
