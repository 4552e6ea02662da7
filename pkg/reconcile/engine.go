package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jordanlanch/contactsync/pkg/activity"
	"github.com/jordanlanch/contactsync/pkg/cache"
	"github.com/jordanlanch/contactsync/pkg/contacts"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/metrics"
	"github.com/jordanlanch/contactsync/pkg/models"
	"github.com/jordanlanch/contactsync/pkg/webhook"
)

// Propagator fans local changes out to the other connected platforms
type Propagator interface {
	CreateAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)
	UpdateAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)
	DeleteAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)
}

// Dependencies wires the engine. Activity, Receipts and Metrics are optional;
// a nil Locker falls back to an in-process one.
type Dependencies struct {
	Store      contacts.Store
	Propagator Propagator
	Activity   activity.Store
	Locker     cache.Locker
	Receipts   cache.ReceiptStore
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// Config tunes locking and duplicate detection
type Config struct {
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

// Engine routes contact webhooks to their handlers
type Engine struct {
	store      contacts.Store
	propagator Propagator
	activity   activity.Store
	locker     cache.Locker
	receipts   cache.ReceiptStore
	metrics    *metrics.Metrics
	log        logger.Logger
	cfg        Config
	now        func() time.Time

	handlers map[string]handler
}

type handler struct {
	name     string
	action   string
	catchAll string
	run      func(ctx context.Context, t *trace) (webhook.Result, error)
}

// trace carries what a handler learned for the audit trail
type trace struct {
	evt     *webhook.Event
	action  string
	contact *models.Contact
}

// NewEngine creates an engine
func NewEngine(deps Dependencies, cfg Config) *Engine {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if deps.Locker == nil {
		deps.Locker = cache.NewLocalLocker()
	}

	e := &Engine{
		store:      deps.Store,
		propagator: deps.Propagator,
		activity:   deps.Activity,
		locker:     deps.Locker,
		receipts:   deps.Receipts,
		metrics:    deps.Metrics,
		log:        logger.Component(deps.Logger, "reconcile"),
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}

	e.handlers = map[string]handler{
		webhook.EventCreateContact: {
			name:     "handleCreateContact",
			action:   models.ActionContactCreated,
			catchAll: "Unexpected error in handleCreateContact",
			run:      e.handleCreateContact,
		},
		webhook.EventUpdateContact: {
			name:     "handleUpdateContact",
			action:   models.ActionContactUpdated,
			catchAll: "Unexpected error in handleUpdateContact",
			run:      e.handleUpdateContact,
		},
		webhook.EventDeleteContact: {
			name:     "handleDeleteContact",
			action:   models.ActionContactDeleted,
			catchAll: "Unexpected error in handleDeleteContact",
			run:      e.handleDeleteContact,
		},
		webhook.EventCreateContactInternal: {
			name:     "handleCreateContactInternal",
			action:   models.ActionContactLinked,
			catchAll: "Failed to create internal contact",
			run:      e.handleCreateContactInternal,
		},
	}
	return e
}

// Handle processes one event. It never panics and never returns an error:
// every failure is reported in the Result.
func (e *Engine) Handle(ctx context.Context, evt *webhook.Event) webhook.Result {
	start := time.Now()

	if evt == nil {
		return webhook.Failed(webhook.MsgNoData, nil)
	}

	h, ok := e.handlers[evt.EventType]
	if !ok {
		result := webhook.Failed(fmt.Sprintf("Handler for %s not found", evt.EventType), nil)
		e.metrics.RecordWebhookEvent(evt.EventType, "failure", time.Since(start))
		return result
	}

	log := e.log.With(
		"event_type", evt.EventType,
		"customer_id", evt.CustomerID,
		"external_contact_id", evt.ExternalContactID,
		"integration", evt.PlatformKey(),
	)

	lockCtx, cancel := context.WithTimeout(ctx, e.cfg.LockTTL)
	release, err := e.locker.Acquire(lockCtx, lockKey(evt), e.cfg.LockTTL)
	cancel()
	if err != nil {
		log.Error("failed to acquire contact lock", "error", err.Error())
		e.metrics.RecordWebhookEvent(evt.EventType, "failure", time.Since(start))
		return webhook.Failed("Failed to acquire processing lock", err)
	}
	defer release()

	receipt := ""
	if e.receipts != nil {
		receipt = IdempotencyKey(evt)
		seen, err := e.receipts.Seen(ctx, receipt)
		if err != nil {
			log.Warn("idempotency lookup failed, processing anyway", "error", err.Error())
		} else if seen {
			log.Info("duplicate webhook ignored")
			e.metrics.RecordWebhookEvent(evt.EventType, "duplicate", time.Since(start))
			return webhook.Succeeded(MsgDuplicate, "")
		}
	}

	t := &trace{evt: evt, action: h.action}
	result := e.invoke(ctx, h, t, log)

	if result.Success && receipt != "" {
		if err := e.receipts.Record(ctx, receipt, e.cfg.IdempotencyTTL); err != nil {
			log.Warn("failed to record webhook receipt", "error", err.Error())
		}
	}

	e.audit(ctx, t, result, log)

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	e.metrics.RecordWebhookEvent(evt.EventType, outcome, time.Since(start))

	if result.Success {
		log.Info(result.Message, "contact_id", result.ContactID)
	} else {
		log.Error(result.Message)
	}
	return result
}

// invoke runs the handler, converting errors and panics into a failed Result
func (e *Engine) invoke(ctx context.Context, h handler, t *trace, log logger.Logger) (result webhook.Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.Error(h.catchAll, "handler", h.name, "error", err.Error())
			e.capture(ctx, t.evt, err)
			result = webhook.Failed(h.catchAll, err)
		}
	}()

	result, err := h.run(ctx, t)
	if err != nil {
		log.Error(h.catchAll, "handler", h.name, "error", err.Error())
		e.capture(ctx, t.evt, err)
		return webhook.Failed(h.catchAll, err)
	}
	return result
}

func (e *Engine) capture(ctx context.Context, evt *webhook.Event, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event_type", evt.EventType)
		scope.SetTag("integration", evt.PlatformKey())
		scope.SetExtra("external_contact_id", evt.ExternalContactID)
		hub.CaptureException(err)
	})
}

func (e *Engine) audit(ctx context.Context, t *trace, result webhook.Result, log logger.Logger) {
	if e.activity == nil || t.evt.CustomerID == "" {
		return
	}

	contact := t.contact
	if contact == nil {
		data := webhook.Extract(t.evt)
		contact = &models.Contact{ID: result.ContactID, Name: data.Name, Email: data.Email}
	}

	entry := activity.NewEntry(t.evt.CustomerID, t.action, contact, t.evt.PlatformKey(), result.Success, result.Message)
	if err := e.activity.Record(ctx, entry); err != nil {
		log.Warn("failed to record activity", "error", err.Error())
	}
}

// MsgDuplicate is the result message for an already processed delivery
const MsgDuplicate = "Duplicate webhook ignored"

// IdempotencyKey fingerprints a delivery by event type, contact, customer and platform timestamps
func IdempotencyKey(evt *webhook.Event) string {
	var created, updated string
	if evt.Data != nil {
		base := evt.Data.Base()
		created, updated = base.CreatedTime, base.UpdatedTime
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		evt.EventType, evt.ExternalContactID, evt.CustomerID, created, updated,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

func lockKey(evt *webhook.Event) string {
	id := evt.ExternalContactID
	if id == "" {
		id = evt.InternalContactID
	}
	return "contact:" + evt.CustomerID + ":" + id
}

func authFor(evt *webhook.Event) gateway.Auth {
	return gateway.Auth{CustomerID: evt.CustomerID}
}
