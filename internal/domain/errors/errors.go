package errors

import (
	"net/http"

	"authcore/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Provider configuration errors. Fatal: surfaced during startup
	// validation, never at request time.
	ErrProviderConfig = NewBaseError(
		http.StatusInternalServerError,
		"PROVIDER_CONFIG_INVALID",
		"authentication provider configuration is invalid",
		"",
	)

	ErrProviderUnknown = NewBaseError(
		http.StatusBadRequest,
		"PROVIDER_UNKNOWN",
		"unknown authentication provider",
		"",
	)

	// Linking errors.
	//
	// ErrAmbiguousLink means more than one user carries the same verified
	// email, which trusted-method accumulation is supposed to make
	// impossible. It must never be resolved by guessing.
	ErrAmbiguousLink = NewBaseError(
		http.StatusConflict,
		"AMBIGUOUS_LINK",
		"multiple users match the verified identity",
		"",
	)

	ErrAuthorization = NewBaseError(
		http.StatusForbidden,
		"AUTHORIZATION_DENIED",
		"sign-in was rejected",
		"",
	)

	// Verification code errors. All three surface to clients as the same
	// generic rejection; the distinct kinds exist for server-side logs and
	// metrics only.
	ErrCodeNotFound = NewBaseError(
		http.StatusUnauthorized,
		"CODE_NOT_FOUND",
		"invalid or expired code",
		"",
	)

	ErrCodeExpired = NewBaseError(
		http.StatusUnauthorized,
		"CODE_EXPIRED",
		"invalid or expired code",
		"",
	)

	ErrCodeAlreadyUsed = NewBaseError(
		http.StatusUnauthorized,
		"CODE_ALREADY_USED",
		"invalid or expired code",
		"",
	)

	ErrCodeMalformed = NewBaseError(
		http.StatusBadRequest,
		"CODE_MALFORMED",
		"invalid or expired code",
		"",
	)

	ErrVerifierNotFound = NewBaseError(
		http.StatusUnauthorized,
		"VERIFIER_NOT_FOUND",
		"sign-in flow is invalid or has expired",
		"",
	)

	// Session and token errors.
	ErrRefreshTokenReuse = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_TOKEN_REUSED",
		"refresh token is no longer valid",
		"",
	)

	ErrRefreshTokenInvalid = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_TOKEN_INVALID",
		"refresh token is no longer valid",
		"",
	)

	ErrSessionNotFound = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_NOT_FOUND",
		"session is no longer valid",
		"",
	)

	ErrSessionLimitExceeded = NewBaseError(
		http.StatusTooManyRequests,
		"SESSION_LIMIT_EXCEEDED",
		"maximum number of concurrent sessions reached",
		"",
	)

	// User errors.
	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"user not found",
		"",
	)

	ErrUserCreationFailed = NewBaseError(
		http.StatusInternalServerError,
		"USER_CREATION_FAILED",
		"failed to create user",
		"",
	)

	ErrUserUpdateFailed = NewBaseError(
		http.StatusInternalServerError,
		"USER_UPDATE_FAILED",
		"failed to update user",
		"",
	)

	// Validation-related errors.
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"input validation failed",
		"",
	)

	// Transaction-related errors.
	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"database transaction failed",
		"",
	)

	// General errors.
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal server error",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"access denied",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"resource not found",
		"",
	)

	ErrConflict = NewBaseError(
		http.StatusConflict,
		"CONFLICT",
		"resource conflict",
		"",
	)
)

// SignInFailed is the single generic rejection returned to clients for any
// authentication failure. Handlers map the detailed kinds above onto this
// value so "account not found" and "wrong code" are indistinguishable on the
// wire.
var SignInFailed = NewBaseError(
	http.StatusUnauthorized,
	"SIGNIN_FAILED",
	"sign-in failed",
	"",
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the underlying database error for errors.Is/As.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}

// HookError reports a post-link hook failure. The identity and account writes
// it accompanies have already committed; callers receive it as a secondary
// error next to a successful link result.
type HookError struct {
	err error
}

// NewHookError wraps a hook failure.
func NewHookError(err error) *HookError {
	return &HookError{err: err}
}

// Error implements the error interface
func (e *HookError) Error() string {
	return errors.Wrap(e.err, "post-link hook failed").Error()
}

// Unwrap exposes the hook's own error.
func (e *HookError) Unwrap() error {
	return e.err
}
