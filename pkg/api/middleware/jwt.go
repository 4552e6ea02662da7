package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/auth"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// Context keys set by JWTMiddleware
const (
	ContextCustomerID   = "customer_id"
	ContextCustomerName = "customer_name"
)

// JWTMiddleware authenticates dashboard requests with a customer bearer token
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "missing_token",
					Message: "Authorization header is required",
				})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token_format",
					Message: "Authorization header must be 'Bearer {token}'",
				})
			}

			claims, err := auth.ValidateJWT(parts[1], secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token",
					Message: err.Error(),
				})
			}

			c.Set(ContextCustomerID, claims.CustomerID)
			c.Set(ContextCustomerName, claims.CustomerName)

			return next(c)
		}
	}
}

// CustomerAuth returns the gateway identity stored by JWTMiddleware
func CustomerAuth(c echo.Context) (gateway.Auth, bool) {
	id, _ := c.Get(ContextCustomerID).(string)
	if id == "" {
		return gateway.Auth{}, false
	}
	name, _ := c.Get(ContextCustomerName).(string)
	return gateway.Auth{CustomerID: id, CustomerName: name}, true
}
