package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/api/errors"
	"github.com/jordanlanch/contactsync/pkg/api/middleware"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// ContactService is the contact API used by ContactHandler
type ContactService interface {
	List(ctx context.Context, customerID string) ([]*models.Contact, error)
	Get(ctx context.Context, id, customerID string) (*models.Contact, error)
	Create(ctx context.Context, auth gateway.Auth, req models.ContactRequest) (*models.ContactMutationResponse, error)
	Update(ctx context.Context, auth gateway.Auth, id string, req models.ContactRequest) (*models.ContactMutationResponse, error)
	Delete(ctx context.Context, auth gateway.Auth, id string) (*models.ContactMutationResponse, error)
}

// ContactHandler handles contact endpoints
type ContactHandler struct {
	service   ContactService
	validator *validator.Validate
	timeout   time.Duration
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service ContactService) *ContactHandler {
	return &ContactHandler{
		service:   service,
		validator: validator.New(),
		timeout:   30 * time.Second,
	}
}

// ListContacts godoc
// @Summary List contacts
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ContactListResponse
// @Router /api/v1/contacts [get]
func (h *ContactHandler) ListContacts(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	list, err := h.service.List(ctx, auth.CustomerID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.ContactListResponse{Data: list, Count: len(list)})
}

// GetContact returns one contact of the authenticated customer
func (h *ContactHandler) GetContact(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	contact, err := h.service.Get(ctx, c.Param("id"), auth.CustomerID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, contact)
}

// CreateContact godoc
// @Summary Create a contact
// @Description Stores the contact and creates it on every connected platform
// @Tags Contacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body models.ContactRequest true "Contact"
// @Success 201 {object} models.ContactMutationResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/contacts [post]
func (h *ContactHandler) CreateContact(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.ContactRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequestError(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp, err := h.service.Create(ctx, auth, req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusCreated, resp)
}

// UpdateContact replaces a contact's fields and updates the linked platforms
func (h *ContactHandler) UpdateContact(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	var req models.ContactRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequestError(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp, err := h.service.Update(ctx, auth, c.Param("id"), req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// DeleteContact removes a contact and deletes it on the linked platforms
func (h *ContactHandler) DeleteContact(c echo.Context) error {
	auth, ok := middleware.CustomerAuth(c)
	if !ok {
		return errors.UnauthorizedError(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp, err := h.service.Delete(ctx, auth, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}
