package contacts

import (
	"context"
	"fmt"

	"github.com/jordanlanch/contactsync/pkg/activity"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// Propagator fans local changes out to the connected platforms
type Propagator interface {
	CreateAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)
	UpdateAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)
	DeleteAcross(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)
}

// Service implements the contact operations exposed over REST.
// Local writes always commit first; a failed fan-out is reported in the
// response instead of failing the request.
type Service struct {
	store       Store
	propagator  Propagator
	activity    activity.Store
	phoneRegion string
	log         logger.Logger
}

// NewService creates a contact service. activity may be nil.
func NewService(store Store, propagator Propagator, activityStore activity.Store, phoneRegion string, log logger.Logger) *Service {
	return &Service{
		store:       store,
		propagator:  propagator,
		activity:    activityStore,
		phoneRegion: phoneRegion,
		log:         logger.Component(log, "contacts"),
	}
}

// List returns the customer's contacts
func (s *Service) List(ctx context.Context, customerID string) ([]*models.Contact, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// Get returns one of the customer's contacts
func (s *Service) Get(ctx context.Context, id, customerID string) (*models.Contact, error) {
	return s.store.FindByIDAndCustomer(ctx, id, customerID)
}

// Create stores a contact and creates it on every connected platform
func (s *Service) Create(ctx context.Context, auth gateway.Auth, req models.ContactRequest) (*models.ContactMutationResponse, error) {
	created, err := s.store.Create(ctx, &models.Contact{
		CustomerID: auth.CustomerID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      NormalizePhone(req.Phone, s.phoneRegion),
		JobTitle:   orNotAvailable(req.JobTitle),
		Pronouns:   orNotAvailable(req.Pronouns),
	})
	if err != nil {
		return nil, err
	}

	resp := s.fanOut(ctx, auth, created, s.propagator.CreateAcross)

	// pick up the links the fan-out attached
	if fresh, err := s.store.FindByIDAndCustomer(ctx, created.ID, auth.CustomerID); err == nil {
		resp.Contact = fresh
	}

	s.record(ctx, auth.CustomerID, models.ActionContactCreated, resp.Contact, resp)
	return resp, nil
}

// Update replaces the contact's core fields and updates every linked platform
func (s *Service) Update(ctx context.Context, auth gateway.Auth, id string, req models.ContactRequest) (*models.ContactMutationResponse, error) {
	phone := NormalizePhone(req.Phone, s.phoneRegion)
	jobTitle, pronouns := orNotAvailable(req.JobTitle), orNotAvailable(req.Pronouns)
	updated, err := s.store.UpdateFieldsByIDAndCustomer(ctx, id, auth.CustomerID, models.ContactFields{
		Name:     &req.Name,
		Email:    &req.Email,
		Phone:    &phone,
		JobTitle: &jobTitle,
		Pronouns: &pronouns,
	})
	if err != nil {
		return nil, err
	}

	resp := s.fanOut(ctx, auth, updated, s.propagator.UpdateAcross)
	s.record(ctx, auth.CustomerID, models.ActionContactUpdated, updated, resp)
	return resp, nil
}

// Delete removes the contact and deletes it on every linked platform
func (s *Service) Delete(ctx context.Context, auth gateway.Auth, id string) (*models.ContactMutationResponse, error) {
	contact, err := s.store.FindByIDAndCustomer(ctx, id, auth.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteByIDAndCustomer(ctx, id, auth.CustomerID); err != nil {
		return nil, err
	}

	resp := s.fanOut(ctx, auth, contact, s.propagator.DeleteAcross)
	resp.Contact = nil
	s.record(ctx, auth.CustomerID, models.ActionContactDeleted, contact, resp)
	return resp, nil
}

type fanOutFunc func(ctx context.Context, auth gateway.Auth, contact *models.Contact, exclude ...string) ([]models.PropagationOutcome, error)

func (s *Service) fanOut(ctx context.Context, auth gateway.Auth, contact *models.Contact, fn fanOutFunc) *models.ContactMutationResponse {
	resp := &models.ContactMutationResponse{Contact: contact, Propagation: []models.PropagationOutcome{}}

	outcomes, err := fn(ctx, auth, contact)
	if err != nil {
		s.log.Error("propagation failed", "contact_id", contact.ID, "customer_id", auth.CustomerID, "error", err.Error())
		resp.PropagationError = err.Error()
		return resp
	}
	resp.Propagation = outcomes
	return resp
}

func (s *Service) record(ctx context.Context, customerID, action string, contact *models.Contact, resp *models.ContactMutationResponse) {
	if s.activity == nil {
		return
	}

	details := fmt.Sprintf("propagated to %d platform(s)", len(resp.Propagation))
	if resp.PropagationError != "" {
		details = resp.PropagationError
	}
	entry := activity.NewEntry(customerID, action, contact, models.InitiatorSyncApp, resp.PropagationError == "", details)
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Warn("failed to record activity", "error", err.Error())
	}
}

func orNotAvailable(v string) string {
	if v == "" {
		return models.NotAvailable
	}
	return v
}
