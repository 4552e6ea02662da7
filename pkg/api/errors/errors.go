package errors

import (
	stderrors "errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/models"
)

var (
	logMu sync.RWMutex
	log   = logger.Component(logger.Default(), "api")
)

// SetLogger replaces the logger used to record the details hidden from clients
func SetLogger(l logger.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	log = logger.Component(l, "api")
}

func current() logger.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	current().Warn("validation error", "path", c.Request().URL.Path, "error", err.Error())

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// BadRequestError returns a client error whose message is safe to expose
func BadRequestError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// StoreError returns a generic persistence error without exposing internal details
func StoreError(c echo.Context, err error) error {
	current().Error("store error", "path", c.Request().URL.Path, "error", err.Error())

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "database_error",
		Message: "A database error occurred. Please try again later.",
	})
}

// IntegrationError reports a failed call to the integration gateway
func IntegrationError(c echo.Context, err error) error {
	current().Error("integration error", "path", c.Request().URL.Path, "error", err.Error())

	return c.JSON(http.StatusBadGateway, models.ErrorResponse{
		Error:   "integration_error",
		Message: "The integration platform request failed. Please try again later.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	current().Error("internal error", "path", c.Request().URL.Path, "error", err.Error())

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// NotFoundError returns a not found error for the named resource
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: resource + " not found",
	})
}

// ConflictError returns a conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message,
	})
}

// FromDomain writes the response matching err's domain code
func FromDomain(c echo.Context, err error) error {
	var clientErr *gateway.ClientError
	if stderrors.As(err, &clientErr) {
		return IntegrationError(c, err)
	}

	var de *domain.DomainError
	if !stderrors.As(err, &de) {
		return InternalError(c, err)
	}

	switch de.Code {
	case domain.ErrCodeNotFound:
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: de.Message})
	case domain.ErrCodeValidation:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation_error", Message: de.Message})
	case domain.ErrCodeBadRequest:
		return BadRequestError(c, de.Message)
	case domain.ErrCodeConflict:
		return ConflictError(c, de.Message)
	case domain.ErrCodeUnauthorized:
		return UnauthorizedError(c)
	case domain.ErrCodeStore:
		return StoreError(c, err)
	case domain.ErrCodeIntegration:
		return IntegrationError(c, err)
	default:
		return InternalError(c, err)
	}
}
