package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/api/errors"
	"github.com/jordanlanch/contactsync/pkg/api/middleware"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// ActionRunner runs single gateway actions for a customer
type ActionRunner interface {
	Execute(ctx context.Context, auth gateway.Auth, key, action string, payload any) (*gateway.ActionResult, error)
	ExecuteWithRetry(ctx context.Context, auth gateway.Auth, key, action string, payload any) (*gateway.ActionResult, error)
}

// PlatformHandler exposes records held on the external platforms
type PlatformHandler struct {
	runner  ActionRunner
	timeout time.Duration
	now     func() time.Time
}

// NewPlatformHandler creates a new platform handler
func NewPlatformHandler(runner ActionRunner) *PlatformHandler {
	return &PlatformHandler{
		runner:  runner,
		timeout: 30 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetPlatformData godoc
// @Summary Fetch a contact from a platform
// @Tags Platforms
// @Produce json
// @Security BearerAuth
// @Param platformType path string true "hubspot or pipedrive"
// @Param id query string true "External contact ID"
// @Success 200 {object} models.PlatformDataResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/platforms/{platformType}/data [get]
func (h *PlatformHandler) GetPlatformData(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	platform := c.Param("platformType")
	if !models.IntegrationType(platform).IsValid() {
		return errors.BadRequestError(c, "Invalid platform type")
	}
	id := c.QueryParam("id")
	if id == "" {
		return errors.BadRequestError(c, "Contact ID is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.runner.Execute(ctx, auth, platform, gateway.ActionFindContactByID, map[string]string{"id": id})
	if err != nil {
		return h.gatewayError(c, err)
	}

	return c.JSON(http.StatusOK, models.PlatformDataResponse{
		Metadata: models.PlatformMetadata{
			PlatformType:   platform,
			LastSyncStatus: "success",
			Data:           result.Output,
		},
		LastSync: h.now(),
	})
}

// DeletePlatformContact deletes a contact directly on one platform
func (h *PlatformHandler) DeletePlatformContact(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	platform := c.Param("platformType")
	if !models.IntegrationType(platform).IsValid() {
		return errors.BadRequestError(c, "Invalid platform type")
	}
	externalID := c.Param("externalId")

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if _, err := h.runner.ExecuteWithRetry(ctx, auth, platform, gateway.ActionDeleteContacts, map[string]string{"id": externalID}); err != nil {
		return h.gatewayError(c, err)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Contact deleted from " + platform,
	})
}

func (h *PlatformHandler) gatewayError(c echo.Context, err error) error {
	var apiErr *gateway.APIError
	if stderrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return errors.NotFoundError(c, "Platform contact")
	}
	return errors.IntegrationError(c, err)
}
