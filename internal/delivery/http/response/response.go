// Package response renders the unified API envelope. Every JSON body carries
// either data or an error, plus the request ID for tracing.
package response

import (
	deliverycontext "authcore/internal/delivery/context"
	domainerrors "authcore/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// Success writes a successful response envelope.
func Success(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, domainerrors.SuccessResponse{
		Data: data,
		Meta: meta(c),
	})
}

// Error writes an error envelope from an application error. The error passed
// here must already be client-facing; handlers normally just return errors
// and let the error middleware apply the generic-rejection policy.
func Error(c echo.Context, appErr domainerrors.AppError) error {
	return ErrorWith(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), appErr.Details())
}

// ErrorWith writes an error envelope from explicit parts.
func ErrorWith(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	info := &domainerrors.ErrorInfo{
		Code:    errorCode,
		Message: message,
	}
	if s, ok := details.(string); !ok || s != "" {
		info.Details = details
	}

	return c.JSON(statusCode, domainerrors.ErrorResponse{
		Error: info,
		Meta:  meta(c),
	})
}

func meta(c echo.Context) *domainerrors.MetaInfo {
	return &domainerrors.MetaInfo{RequestID: deliverycontext.GetRequestID(c)}
}
