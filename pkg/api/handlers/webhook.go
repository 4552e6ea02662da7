package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/contactsync/pkg/api/errors"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/models"
	"github.com/jordanlanch/contactsync/pkg/webhook"
)

// WebhookAck is returned to the gateway once an event was processed
const WebhookAck = "App received webhook"

// EventHandler reconciles one webhook event
type EventHandler interface {
	Handle(ctx context.Context, evt *webhook.Event) webhook.Result
}

// WebhookHandler receives contact events from the integration gateway
type WebhookHandler struct {
	engine  EventHandler
	reflect bool
	timeout time.Duration
	log     logger.Logger
}

// NewWebhookHandler creates a new webhook handler. With reflect set the
// processing result is returned instead of the generic acknowledgement.
func NewWebhookHandler(engine EventHandler, reflect bool, timeout time.Duration, log logger.Logger) *WebhookHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookHandler{
		engine:  engine,
		reflect: reflect,
		timeout: timeout,
		log:     logger.Component(log, "webhook"),
	}
}

// ReceiveContactEvent godoc
// @Summary Receive a contact webhook
// @Description Reconciles a contact change reported by HubSpot or Pipedrive through the integration gateway
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param x-webhook-token header string true "Shared webhook secret"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Unauthorized"
// @Router /api/webhooks/contacts [post]
func (h *WebhookHandler) ReceiveContactEvent(c echo.Context) error {
	var evt webhook.Event
	if err := c.Bind(&evt); err != nil {
		h.log.Warn("undecodable webhook body", "error", err.Error())
		return errors.BadRequestError(c, "Invalid webhook body")
	}
	if err := evt.DataError(); err != nil {
		h.log.Warn("webhook contact data ignored", "event_type", evt.EventType, "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result := h.engine.Handle(ctx, &evt)

	h.log.Info("webhook processed",
		"event_type", evt.EventType,
		"integration", evt.PlatformKey(),
		"customer_id", evt.CustomerID,
		"external_contact_id", evt.ExternalContactID,
		"success", result.Success,
		"message", result.Message,
	)

	if h.reflect {
		status := http.StatusOK
		if !result.Success {
			status = http.StatusUnprocessableEntity
		}
		return c.JSON(status, result)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: WebhookAck})
}
