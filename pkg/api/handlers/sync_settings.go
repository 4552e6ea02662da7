package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/api/errors"
	"github.com/jordanlanch/contactsync/pkg/api/middleware"
	"github.com/jordanlanch/contactsync/pkg/models"
	"github.com/jordanlanch/contactsync/pkg/syncsettings"
)

// SyncSettingsHandler handles the customer's synchronization preferences
type SyncSettingsHandler struct {
	store     syncsettings.Store
	validator *validator.Validate
}

// NewSyncSettingsHandler creates a new sync settings handler
func NewSyncSettingsHandler(store syncsettings.Store) *SyncSettingsHandler {
	return &SyncSettingsHandler{
		store:     store,
		validator: validator.New(),
	}
}

// GetSyncSettings returns the stored settings or the defaults
func (h *SyncSettingsHandler) GetSyncSettings(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	settings, err := h.store.Get(ctx, auth.CustomerID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}

// SaveSyncSettings godoc
// @Summary Save sync settings
// @Tags Sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body models.SyncSettingsRequest true "Settings"
// @Success 200 {object} models.SyncSettings
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/sync-settings [post]
func (h *SyncSettingsHandler) SaveSyncSettings(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.SyncSettingsRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequestError(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	settings, err := h.store.Save(ctx, auth.CustomerID, req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}
