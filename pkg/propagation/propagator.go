package propagation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/metrics"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// Action is the kind of change being propagated
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// MsgNoIntegration is reported for platforms the contact was never linked to
const MsgNoIntegration = "No existing integration found for this contact"

// LinkWriter records the platform link created by a propagated create
type LinkWriter interface {
	PushIntegration(ctx context.Context, contactID string, integration models.Integration) error
}

// SettingsReader returns a customer's sync settings
type SettingsReader interface {
	Get(ctx context.Context, customerID string) (*models.SyncSettings, error)
}

// Config tunes fan-out and retries
type Config struct {
	Timeout     time.Duration
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Timeout:     5 * time.Second,
		Concurrency: 4,
		MaxRetries:  3,
		RetryDelay:  time.Second,
	}
}

// Propagator pushes a local contact change to every other connected platform
type Propagator struct {
	factory  gateway.Factory
	links    LinkWriter
	settings SettingsReader
	metrics  *metrics.Metrics
	log      logger.Logger
	cfg      Config
	now      func() time.Time
}

// New creates a Propagator. settings and m may be nil.
func New(factory gateway.Factory, links LinkWriter, settings SettingsReader, m *metrics.Metrics, log logger.Logger, cfg Config) *Propagator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Propagator{
		factory:  factory,
		links:    links,
		settings: settings,
		metrics:  m,
		log:      logger.Component(log, "propagation"),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateAcross creates the contact on every active platform not in exclude
func (p *Propagator) CreateAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error) {
	return p.Propagate(ctx, auth, contact, ActionCreate, exclude)
}

// UpdateAcross updates the contact on every linked platform not in exclude
func (p *Propagator) UpdateAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error) {
	return p.Propagate(ctx, auth, contact, ActionUpdate, exclude)
}

// DeleteAcross deletes the contact on every linked platform not in exclude
func (p *Propagator) DeleteAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error) {
	return p.Propagate(ctx, auth, contact, ActionDelete, exclude)
}

// Propagate fans action out to the customer's active connections.
// Per-platform failures are reported as outcomes; the returned error is a
// *gateway.ClientError when no client could be obtained, or an integration
// error when the connection list could not be read.
// Outcomes follow the gateway's connection order.
func (p *Propagator) Propagate(ctx context.Context, auth gateway.Auth, contact *models.Contact, action Action, exclude []string) ([]models.PropagationOutcome, error) {
	if !p.outboundAllowed(ctx, auth.CustomerID) {
		p.log.Info("outbound sync disabled, skipping propagation",
			"customer_id", auth.CustomerID, "contact_id", contact.ID, "action", string(action))
		return []models.PropagationOutcome{}, nil
	}

	client, err := p.client(ctx, auth)
	if err != nil {
		return nil, err
	}

	targets, err := p.activeConnections(ctx, client, exclude)
	if err != nil {
		return nil, err
	}

	outcomes := make([]models.PropagationOutcome, len(targets))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, key := range targets {
		g.Go(func() error {
			outcomes[i] = p.propagateOne(ctx, client, key, contact, action)
			p.metrics.RecordPropagation(key, string(action), outcomes[i].Success)
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info("propagation finished",
		"customer_id", auth.CustomerID,
		"contact_id", contact.ID,
		"action", string(action),
		"targets", len(targets),
		"failed", countFailed(outcomes))

	return outcomes, nil
}

func (p *Propagator) propagateOne(ctx context.Context, client gateway.Client, key string, contact *models.Contact, action Action) models.PropagationOutcome {
	outcome := models.PropagationOutcome{IntegrationKey: key}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	switch action {
	case ActionCreate:
		result, err := client.RunAction(callCtx, key, gateway.ActionCreateContacts, contactPayload(contact.ID, contact))
		if err != nil {
			return p.failed(outcome, action, p.describe(callCtx, err))
		}
		externalID, ok := result.OutputID()
		if !ok {
			return p.failed(outcome, action, "gateway response carried no contact id")
		}

		now := p.now()
		if err := p.links.PushIntegration(ctx, contact.ID, models.Integration{
			Type:              models.IntegrationType(key),
			ExternalID:        externalID,
			ExternalCreatedAt: now,
			ExternalUpdatedAt: now,
		}); err != nil {
			return p.failed(outcome, action, err.Error())
		}
		outcome.Success = true
		outcome.ExternalContactID = externalID

	case ActionUpdate, ActionDelete:
		link, ok := contact.IntegrationFor(models.IntegrationType(key))
		if !ok || link.ExternalID == "" {
			outcome.Error = MsgNoIntegration
			return outcome
		}

		var err error
		if action == ActionUpdate {
			_, err = client.RunAction(callCtx, key, gateway.ActionUpdateContacts, contactPayload(link.ExternalID, contact))
		} else {
			_, err = client.RunAction(callCtx, key, gateway.ActionDeleteContacts, map[string]string{"id": link.ExternalID})
		}
		if err != nil {
			return p.failed(outcome, action, p.describe(callCtx, err))
		}
		outcome.Success = true
		outcome.ExternalContactID = link.ExternalID

	default:
		outcome.Error = fmt.Sprintf("unsupported action %q", action)
	}

	return outcome
}

func (p *Propagator) failed(outcome models.PropagationOutcome, action Action, msg string) models.PropagationOutcome {
	p.log.Warn("propagation to platform failed",
		"integration", outcome.IntegrationKey, "action", string(action), "error", msg)
	outcome.Error = msg
	return outcome
}

func (p *Propagator) describe(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", p.cfg.Timeout)
	}
	return err.Error()
}

// Execute runs a single action on one platform for the customer
func (p *Propagator) Execute(ctx context.Context, auth gateway.Auth, key, action string, payload any) (*gateway.ActionResult, error) {
	client, err := p.client(ctx, auth)
	if err != nil {
		return nil, err
	}
	return client.RunAction(ctx, key, action, payload)
}

// ExecuteWithRetry runs a single action on one platform, retrying transient failures
func (p *Propagator) ExecuteWithRetry(ctx context.Context, auth gateway.Auth, key, action string, payload any) (*gateway.ActionResult, error) {
	client, err := p.client(ctx, auth)
	if err != nil {
		return nil, err
	}
	return ExecuteWithRetry(ctx, client, key, action, payload, p.cfg.MaxRetries, p.cfg.RetryDelay, func(err error, wait time.Duration) {
		p.metrics.RecordGatewayRetry(key, action)
		p.log.Warn("gateway action failed, retrying",
			"integration", key, "action", action, "retry_in", wait.String(), "error", err.Error())
	})
}

// ActiveIntegrations lists the keys of the customer's usable connections
func (p *Propagator) ActiveIntegrations(ctx context.Context, auth gateway.Auth) ([]string, error) {
	client, err := p.client(ctx, auth)
	if err != nil {
		return nil, err
	}
	return p.activeConnections(ctx, client, nil)
}

// IsIntegrationActive reports whether key is among the active connections.
// Lookup failures count as inactive.
func (p *Propagator) IsIntegrationActive(ctx context.Context, auth gateway.Auth, key string) bool {
	keys, err := p.ActiveIntegrations(ctx, auth)
	if err != nil {
		p.log.Warn("failed to list active integrations", "integration", key, "error", err.Error())
		return false
	}
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func (p *Propagator) client(ctx context.Context, auth gateway.Auth) (gateway.Client, error) {
	client, err := p.factory.Client(ctx, auth)
	if err != nil {
		var clientErr *gateway.ClientError
		if errors.As(err, &clientErr) {
			return nil, clientErr
		}
		return nil, gateway.NewClientError(err)
	}
	return client, nil
}

func (p *Propagator) activeConnections(ctx context.Context, client gateway.Client, exclude []string) ([]string, error) {
	conns, err := client.Connections(ctx)
	if err != nil {
		return nil, domain.NewIntegrationError("connections", err)
	}

	var keys []string
	for _, conn := range conns {
		if !conn.IsActive() || contains(exclude, conn.Key()) {
			continue
		}
		keys = append(keys, conn.Key())
	}
	return keys, nil
}

func (p *Propagator) outboundAllowed(ctx context.Context, customerID string) bool {
	if p.settings == nil {
		return true
	}
	st, err := p.settings.Get(ctx, customerID)
	if err != nil {
		p.log.Warn("failed to load sync settings, using defaults", "customer_id", customerID, "error", err.Error())
		return true
	}
	return st.AllowsOutbound()
}

// contactPayload is the body of create-contacts and update-contacts
func contactPayload(id string, c *models.Contact) map[string]string {
	first, last := splitName(c.Name)
	return map[string]string{
		"id":           id,
		"fullName":     c.Name,
		"firstName":    first,
		"lastName":     last,
		"primaryEmail": c.Email,
		"primaryPhone": c.Phone,
	}
}

// splitName puts the last word in lastName; single words fill both
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func countFailed(outcomes []models.PropagationOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
