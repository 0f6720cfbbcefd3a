package errors

// ErrorInfo contains detailed error information
type ErrorInfo struct {
	Code    string `json:"code"`              // Business error code, e.g., "SIGNIN_FAILED"
	Message string `json:"message"`           // User-friendly error message
	Details any    `json:"details,omitempty"` // Detailed error information (optional)
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID string `json:"request_id"` // Request tracking ID
}

// SuccessResponse defines the structure for successful responses
type SuccessResponse struct {
	Data any       `json:"data"`
	Meta *MetaInfo `json:"meta"`
}

// ErrorResponse defines the structure for error responses
type ErrorResponse struct {
	Error *ErrorInfo `json:"error"`
	Meta  *MetaInfo  `json:"meta"`
}

// genericKinds lists the error codes that must not leak to clients. Their
// detail stays in server logs; the response body collapses to SignInFailed.
var genericKinds = map[string]struct{}{
	ErrCodeNotFound.ErrorCode():        {},
	ErrCodeExpired.ErrorCode():         {},
	ErrCodeAlreadyUsed.ErrorCode():     {},
	ErrCodeMalformed.ErrorCode():       {},
	ErrVerifierNotFound.ErrorCode():    {},
	ErrRefreshTokenReuse.ErrorCode():   {},
	ErrRefreshTokenInvalid.ErrorCode(): {},
	ErrSessionNotFound.ErrorCode():     {},
	ErrUserNotFound.ErrorCode():        {},
	ErrAuthorization.ErrorCode():       {},
}

// ClientFacing maps an application error onto the error that may be shown to
// a client. Authentication failures collapse to the generic rejection so the
// response does not reveal whether a code existed, expired, or was replayed.
func ClientFacing(appErr AppError) AppError {
	if _, hide := genericKinds[appErr.ErrorCode()]; hide {
		return SignInFailed
	}
	return appErr
}
