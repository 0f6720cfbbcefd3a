// Package validator adapts go-playground/validator to echo's Validator seam.
package validator

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator wraps a validator.Validate instance for echo.
type CustomValidator struct {
	validator *validator.Validate
}

// New creates the request validator echo calls from Context.Validate.
func New() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate checks struct tags and converts failures to a 400 response.
func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}
