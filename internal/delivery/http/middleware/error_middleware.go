package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/delivery/http/response"
	domainerrors "authcore/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ErrorMiddleware error handling middleware
type ErrorMiddleware struct {
	logger *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	logger := deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)

	// Application errors carry their own status and code. Authentication
	// failures collapse to the generic rejection before anything is written;
	// the precise kind stays in the log.
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		client := domainerrors.ClientFacing(appErr)
		if client.HTTPCode() >= http.StatusInternalServerError {
			logger.Error("Request failed",
				slog.String("code", appErr.ErrorCode()),
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		} else {
			logger.Warn("Request rejected",
				slog.String("code", appErr.ErrorCode()),
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}

		_ = response.Error(c, client)

		return
	}

	// Echo's own errors (404s, method mismatches, binding and validation
	// failures surfaced as HTTPError).
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = response.ErrorWith(c, httpErr.Code, "HTTP_ERROR", fmt.Sprint(httpErr.Message), nil)

		return
	}

	// Everything else is an unclassified failure.
	logger.Error("Unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)

	_ = response.Error(c, domainerrors.ErrInternalError)
}
