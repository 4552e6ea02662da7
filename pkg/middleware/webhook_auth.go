package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/models"
)

// WebhookTokenHeader carries the shared secret on gateway webhook calls
const WebhookTokenHeader = "x-webhook-token"

// WebhookAuth rejects webhook calls whose token does not match secret.
// A missing and a wrong token get the same response.
func WebhookAuth(secret string) echo.MiddlewareFunc {
	expected := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := []byte(c.Request().Header.Get(WebhookTokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(token, expected) != 1 {
				return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Unauthorized"})
			}
			return next(c)
		}
	}
}
