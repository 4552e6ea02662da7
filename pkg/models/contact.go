package models

import "time"

// IntegrationType identifies an external CRM platform
type IntegrationType string

const (
	IntegrationHubSpot   IntegrationType = "hubspot"
	IntegrationPipedrive IntegrationType = "pipedrive"
)

// SupportedIntegrations lists every platform a contact can be linked to
var SupportedIntegrations = []IntegrationType{IntegrationHubSpot, IntegrationPipedrive}

// IsValid reports whether t is one of the supported platforms
func (t IntegrationType) IsValid() bool {
	for _, s := range SupportedIntegrations {
		if t == s {
			return true
		}
	}
	return false
}

// NotAvailable is the value reported for optional contact fields that were not supplied
const NotAvailable = "N/A"

// Integration links a contact to its record on one external platform
type Integration struct {
	Type              IntegrationType `json:"type"`
	ExternalID        string          `json:"externalId"`
	AccountID         string          `json:"accountId,omitempty"`
	ExternalCreatedAt time.Time       `json:"externalCreatedAt"`
	ExternalUpdatedAt time.Time       `json:"externalUpdatedAt"`
	LastSyncedAt      *time.Time      `json:"lastSyncedAt"`
}

// Contact is the internal contact record
type Contact struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customerId"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone"`
	JobTitle     string        `json:"jobTitle"`
	Pronouns     string        `json:"pronouns"`
	Integrations []Integration `json:"integrations"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// IntegrationFor returns the contact's link to the given platform, if any
func (c *Contact) IntegrationFor(t IntegrationType) (*Integration, bool) {
	for i := range c.Integrations {
		if c.Integrations[i].Type == t {
			return &c.Integrations[i], true
		}
	}
	return nil, false
}

// ContactFields carries a partial update of a contact's core fields.
// Nil fields are left untouched.
type ContactFields struct {
	Name     *string
	Email    *string
	Phone    *string
	JobTitle *string
	Pronouns *string
}

// IsEmpty reports whether no field is set
func (f ContactFields) IsEmpty() bool {
	return f.Name == nil && f.Email == nil && f.Phone == nil && f.JobTitle == nil && f.Pronouns == nil
}

// ContactRequest is the body for creating or replacing a contact
type ContactRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,max=50"`
	JobTitle string `json:"jobTitle" validate:"omitempty,max=255"`
	Pronouns string `json:"pronouns" validate:"omitempty,max=50"`
}

// ContactListResponse represents a list of contacts
type ContactListResponse struct {
	Data  []*Contact `json:"data"`
	Count int        `json:"count"`
}

// PropagationOutcome reports the result of pushing a change to one platform
type PropagationOutcome struct {
	IntegrationKey    string `json:"integrationKey"`
	Success           bool   `json:"success"`
	ExternalContactID string `json:"externalContactId,omitempty"`
	Error             string `json:"error,omitempty"`
}

// ContactMutationResponse is returned by contact write endpoints
type ContactMutationResponse struct {
	Contact          *Contact             `json:"contact,omitempty"`
	Propagation      []PropagationOutcome `json:"propagation"`
	PropagationError string               `json:"propagationError,omitempty"`
}

// PlatformDataResponse wraps a record fetched from an external platform
type PlatformDataResponse struct {
	Metadata PlatformMetadata `json:"metadata"`
	LastSync time.Time        `json:"lastSync"`
	URL      *string          `json:"url"`
}

// PlatformMetadata describes a platform record
type PlatformMetadata struct {
	PlatformType   string `json:"platformType"`
	LastSyncStatus string `json:"lastSyncStatus"`
	Data           any    `json:"data"`
}
