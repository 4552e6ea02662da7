package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/activity"
	"github.com/jordanlanch/contactsync/pkg/api/errors"
	"github.com/jordanlanch/contactsync/pkg/api/middleware"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// ActivityHandler serves the sync audit trail
type ActivityHandler struct {
	store     activity.Store
	validator *validator.Validate
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{
		store:     store,
		validator: validator.New(),
	}
}

// ListLogs godoc
// @Summary List sync activity
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param action query string false "contact_created, contact_updated, contact_deleted or contact_linked"
// @Param initiator query string false "sync_app, hubspot or pipedrive"
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {object} models.ActivityListResponse
// @Router /api/v1/logs [get]
func (h *ActivityHandler) ListLogs(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var filter models.ActivityFilter
	if err := c.Bind(&filter); err != nil {
		return errors.BadRequestError(c, "Invalid query parameters")
	}
	if err := h.validator.Struct(filter); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.store.List(ctx, auth.CustomerID, filter)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.ActivityListResponse{Data: entries, Count: len(entries)})
}
