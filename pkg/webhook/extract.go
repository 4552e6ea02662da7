package webhook

import (
	"encoding/json"
	"time"

	"github.com/jordanlanch/contactsync/pkg/models"
)

// ContactData is the normalized view of a platform contact
type ContactData struct {
	Name       string
	Email      string
	Phone      string
	JobTitle   *string
	Pronouns   *string
	CustomerID string
}

// JobTitleOrDefault returns the job title or "N/A"
func (d ContactData) JobTitleOrDefault() string {
	return valueOrNA(d.JobTitle)
}

// PronounsOrDefault returns the pronouns or "N/A"
func (d ContactData) PronounsOrDefault() string {
	return valueOrNA(d.Pronouns)
}

// Fields converts the data into a core-field update
func (d ContactData) Fields() models.ContactFields {
	name, email, phone, title := d.Name, d.Email, d.Phone, d.JobTitleOrDefault()
	return models.ContactFields{
		Name:     &name,
		Email:    &email,
		Phone:    &phone,
		JobTitle: &title,
	}
}

// ApplyTo overwrites the contact's core fields in memory
func (d ContactData) ApplyTo(c *models.Contact) {
	c.Name = d.Name
	c.Email = d.Email
	c.Phone = d.Phone
	c.JobTitle = d.JobTitleOrDefault()
}

// MarshalJSON reports absent optional values as "N/A"
func (d ContactData) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		JobTitle   string `json:"jobTitle"`
		Pronouns   string `json:"pronouns"`
		CustomerID string `json:"customerId"`
	}{d.Name, d.Email, d.Phone, d.JobTitleOrDefault(), d.PronounsOrDefault(), d.CustomerID})
}

func valueOrNA(v *string) string {
	if v == nil || *v == "" {
		return models.NotAvailable
	}
	return *v
}

// Extract maps an event onto ContactData. It never fails; missing values stay empty or nil.
func Extract(evt *Event) ContactData {
	if evt == nil {
		return ContactData{}
	}

	data := ContactData{CustomerID: evt.CustomerID}
	if evt.Data == nil {
		return data
	}

	core := evt.Data.Core()
	data.Name = core.FullName
	data.Email = core.PrimaryEmail
	data.Phone = core.PrimaryPhone
	data.JobTitle = evt.Data.JobTitle()
	return data
}

// IntegrationData describes the platform link carried by an event
type IntegrationData struct {
	InternalContactID string
	ExternalContactID string
	Key               string
	CreatedTime       time.Time
	UpdatedTime       time.Time
}

// ExtractIntegrationData reads link identifiers and platform timestamps, defaulting times to now
func ExtractIntegrationData(evt *Event, now time.Time) IntegrationData {
	out := IntegrationData{
		InternalContactID: evt.InternalContactID,
		ExternalContactID: evt.ExternalContactID,
		Key:               evt.IntegrationMetadata.Key,
		CreatedTime:       now,
		UpdatedTime:       now,
	}

	if evt.Data != nil {
		base := evt.Data.Base()
		if t, ok := parseTime(base.CreatedTime); ok {
			out.CreatedTime = t
		}
		if t, ok := parseTime(base.UpdatedTime); ok {
			out.UpdatedTime = t
		}
	}
	return out
}

// Integration converts the link into a stored integration entry
func (d IntegrationData) Integration() models.Integration {
	return models.Integration{
		Type:              models.IntegrationType(d.Key),
		ExternalID:        d.ExternalContactID,
		ExternalCreatedAt: d.CreatedTime,
		ExternalUpdatedAt: d.UpdatedTime,
	}
}

func parseTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
