package users

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrAccountNotFound is the error we return for non found accounts
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode("ACCOUNT_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrEmailInUse signals a uniqueness violation on the email column,
// whether caught by the pre-check or by the storage constraint.
var ErrEmailInUse = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode("EMAIL_IN_USE").
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers both unknown email and wrong password,
// deliberately indistinguishable to avoid account enumeration.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned when credentials verify but the
// account status blocks new logins.
var ErrAccountInactive = goerrors.New("account is inactive", goerrors.CategoryAuthz).
	WithTextCode("ACCOUNT_INACTIVE").
	WithCode(goerrors.CodeForbidden)

// ErrAdminCreationForbidden rejects admin signups once admins exist and
// the caller does not present a valid admin token. The message explains
// the bootstrap rule since it is public policy.
var ErrAdminCreationForbidden = goerrors.New(
	"admin accounts already exist, creating another requires an authenticated administrator",
	goerrors.CategoryAuthz,
).
	WithTextCode("ADMIN_CREATION_FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// ErrUnauthenticated is the uniform rejection for missing, malformed,
// expired, or otherwise invalid bearer tokens.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode("UNAUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when a valid token lacks the required role
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// ErrWrongPassword is returned by password changes when the current
// password does not verify.
var ErrWrongPassword = goerrors.New("current password is incorrect", goerrors.CategoryValidation).
	WithTextCode("WRONG_PASSWORD").
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is an internal verification outcome; callers surface
// it as ErrUnauthenticated.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is an internal verification outcome; callers
// surface it as ErrUnauthenticated.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingSigningSecret makes the process fail at start, not per request
var ErrMissingSigningSecret = goerrors.New("signing secret is not configured", goerrors.CategoryOperation).
	WithTextCode("MISSING_SIGNING_SECRET")

// ErrNoEmptyString rejects empty input to the hasher
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode("EMPTY_VALUE").
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the uniform hash verification failure
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(goerrors.CodeUnauthorized)

// NewValidationError builds a recoverable input error naming the rule
// that failed.
func NewValidationError(reason string) *goerrors.Error {
	return goerrors.New(reason, goerrors.CategoryValidation).
		WithTextCode("VALIDATION").
		WithCode(goerrors.CodeBadRequest)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
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

// IsDuplicateConstraintError detects a storage-level uniqueness failure,
// optionally scoped to a column. Covers the sqlite and postgres drivers
// the repository runs against.
func IsDuplicateConstraintError(err error, column string) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return false
	}

	return column == "" || strings.Contains(msg, column)
}
