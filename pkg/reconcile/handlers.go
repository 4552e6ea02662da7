package reconcile

import (
	"context"
	"fmt"

	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/models"
	"github.com/jordanlanch/contactsync/pkg/webhook"
)

// Result messages
const (
	MsgCreated         = "New contact created successfully"
	MsgExistingUpdated = "Existing contact updated successfully"
	MsgUpdated         = "Contact updated successfully"
	MsgDeleted         = "Contact deleted successfully"
	MsgInternalCreated = "Internal contact created successfully"

	MsgNotFoundForUpdate   = "Contact not found for update"
	MsgNotFoundForDeletion = "Contact not found for deletion"
	MsgUpdateFailed        = "Failed to update contact"
	MsgCreateFailed        = "Failed to create new contact"
	MsgExistingFailed      = "Failed to process existing contact integration"
)

func (e *Engine) handleCreateContact(ctx context.Context, t *trace) (webhook.Result, error) {
	evt := t.evt
	if reason := webhook.ValidateBody(evt); reason != "" {
		return webhook.Failed(reason, nil), nil
	}

	key := evt.IntegrationMetadata.Key
	data := webhook.Extract(evt)

	contact, err := e.match(ctx, evt.ExternalContactID, data.Email, evt.CustomerID)
	if err != nil {
		return webhook.Result{}, err
	}

	if contact != nil {
		return e.processExistingContact(ctx, t, contact, data, key), nil
	}
	return e.createNewContact(ctx, t, data, key), nil
}

// processExistingContact links or refreshes the triggering platform on a
// matched contact and pushes the merged fields to the other platforms
func (e *Engine) processExistingContact(ctx context.Context, t *trace, contact *models.Contact, data webhook.ContactData, key string) webhook.Result {
	evt := t.evt
	t.contact = contact

	if link, ok := contact.IntegrationFor(models.IntegrationType(key)); ok {
		t.action = models.ActionContactUpdated
		refreshed, err := e.store.UpdateIntegrationByExternalID(ctx, link.ExternalID, data.Fields())
		if err != nil {
			return webhook.Failed(MsgExistingFailed, err)
		}
		contact = refreshed
	} else {
		t.action = models.ActionContactLinked
		if err := e.store.PushIntegration(ctx, contact.ID, webhook.ExtractIntegrationData(evt, e.now()).Integration()); err != nil {
			return webhook.Failed(MsgExistingFailed, err)
		}
	}

	merged := *contact
	data.ApplyTo(&merged)
	t.contact = &merged

	if _, err := e.propagate(ctx, t, e.propagator.UpdateAcross, &merged, key); err != nil {
		return webhook.Failed(MsgExistingFailed, err)
	}

	return webhook.Succeeded(MsgExistingUpdated, contact.ID)
}

// createNewContact stores the contact together with the triggering link and
// creates it on the other platforms
func (e *Engine) createNewContact(ctx context.Context, t *trace, data webhook.ContactData, key string) webhook.Result {
	evt := t.evt

	contact := &models.Contact{CustomerID: evt.CustomerID}
	data.ApplyTo(contact)
	contact.Pronouns = data.PronounsOrDefault()
	contact.Integrations = []models.Integration{webhook.ExtractIntegrationData(evt, e.now()).Integration()}

	created, err := e.store.Create(ctx, contact)
	if err != nil {
		return webhook.Failed(MsgCreateFailed, err)
	}
	t.contact = created

	if _, err := e.propagate(ctx, t, e.propagator.CreateAcross, created, key); err != nil {
		return webhook.Failed(MsgCreateFailed, err)
	}

	return webhook.Succeeded(MsgCreated, created.ID)
}

func (e *Engine) handleUpdateContact(ctx context.Context, t *trace) (webhook.Result, error) {
	evt := t.evt
	if reason := webhook.ValidateBody(evt); reason != "" {
		return webhook.Failed(reason, nil), nil
	}

	key := evt.IntegrationMetadata.Key
	data := webhook.Extract(evt)

	existing, err := e.match(ctx, evt.ExternalContactID, data.Email, evt.CustomerID)
	if err != nil {
		return webhook.Result{}, err
	}
	if existing == nil {
		return webhook.Failed(MsgNotFoundForUpdate, nil), nil
	}
	t.contact = existing

	updated, err := e.store.UpdateFieldsByIDAndCustomer(ctx, existing.ID, evt.CustomerID, data.Fields())
	if domain.IsNotFound(err) {
		return webhook.Failed(MsgUpdateFailed, nil), nil
	}
	if err != nil {
		return webhook.Result{}, err
	}
	t.contact = updated

	if _, err := e.propagate(ctx, t, e.propagator.UpdateAcross, updated, key); err != nil {
		return webhook.Result{}, err
	}

	return webhook.Succeeded(MsgUpdated, updated.ID), nil
}

func (e *Engine) handleDeleteContact(ctx context.Context, t *trace) (webhook.Result, error) {
	evt := t.evt
	if reason := webhook.ValidateIntegrationMetadata(evt); reason != "" {
		return webhook.Failed(reason, nil), nil
	}

	key := evt.IntegrationMetadata.Key
	email := ""
	if evt.Data != nil {
		email = evt.Data.Core().PrimaryEmail
	}

	contact, err := e.match(ctx, evt.ExternalContactID, email, evt.CustomerID)
	if err != nil {
		return webhook.Result{}, err
	}
	if contact == nil {
		return webhook.Failed(MsgNotFoundForDeletion, nil), nil
	}
	t.contact = contact

	// scoped by the platform link only
	if err := e.store.DeleteByExternalID(ctx, evt.ExternalContactID); err != nil {
		if !domain.IsNotFound(err) {
			return webhook.Result{}, err
		}
		e.log.Warn("no contact linked to external id, nothing deleted locally",
			"external_contact_id", evt.ExternalContactID, "contact_id", contact.ID)
	}

	if _, err := e.propagate(ctx, t, e.propagator.DeleteAcross, contact, key); err != nil {
		return webhook.Result{}, err
	}

	return webhook.Succeeded(MsgDeleted, ""), nil
}

func (e *Engine) handleCreateContactInternal(ctx context.Context, t *trace) (webhook.Result, error) {
	evt := t.evt
	if reason := webhook.ValidateIntegrationMetadata(evt); reason != "" {
		return webhook.Failed(reason, nil), nil
	}

	link := webhook.ExtractIntegrationData(evt, e.now())
	if link.InternalContactID == "" {
		return webhook.Result{}, domain.NewValidationError("internalContactId is required")
	}

	if err := e.store.PushIntegration(ctx, link.InternalContactID, link.Integration()); err != nil {
		return webhook.Result{}, err
	}
	t.contact = &models.Contact{ID: link.InternalContactID}

	return webhook.Succeeded(MsgInternalCreated, ""), nil
}

// match finds the contact by platform link first, then by email within the customer
func (e *Engine) match(ctx context.Context, externalID, email, customerID string) (*models.Contact, error) {
	if externalID != "" {
		contact, err := e.store.FindByExternalID(ctx, externalID)
		if err == nil {
			return contact, nil
		}
		if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("failed to find contact by external id: %w", err)
		}
	}

	if email == "" {
		return nil, nil
	}

	contact, err := e.store.FindByEmailAndCustomer(ctx, email, customerID)
	if domain.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by email: %w", err)
	}
	return contact, nil
}

type fanOut func(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)

// propagate runs a fan-out excluding the triggering platform and logs per-platform failures
func (e *Engine) propagate(ctx context.Context, t *trace, fn fanOut, contact *models.Contact, key string) ([]models.PropagationOutcome, error) {
	outcomes, err := fn(ctx, authFor(t.evt), contact, key)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		if !o.Success {
			e.log.Warn("platform not synchronized",
				"contact_id", contact.ID, "integration", o.IntegrationKey, "error", o.Error)
		}
	}
	return outcomes, nil
}
