package testdata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/contactsync/pkg/models"
)

// WebhookOptions configures a generated webhook body
type WebhookOptions struct {
	EventType         string
	Platform          string
	CustomerID        string
	ExternalContactID string
	InternalContactID string
	Name              string
	Email             string
	Phone             string
	JobTitle          *string
	CreatedTime       string
	UpdatedTime       string
	OmitData          bool
}

// NewWebhookOptions fills a webhook with a random person on the given platform
func NewWebhookOptions(eventType, platform string) WebhookOptions {
	person := gofakeit.Person()
	now := time.Now().UTC()

	return WebhookOptions{
		EventType:         eventType,
		Platform:          platform,
		CustomerID:        "cust-" + gofakeit.LetterN(8),
		ExternalContactID: fmt.Sprintf("%s-%d", platform, gofakeit.Number(100000, 999999)),
		Name:              person.FirstName + " " + person.LastName,
		Email:             strings.ToLower(person.Contact.Email),
		Phone:             "+1" + person.Contact.Phone,
		CreatedTime:       now.Add(-time.Hour).Format(time.RFC3339),
		UpdatedTime:       now.Format(time.RFC3339),
	}
}

// WebhookPayload renders the options as the gateway would deliver them.
// HubSpot job titles go to fields.jobTitle, Pipedrive ones to rawFields.job_title.
func WebhookPayload(o WebhookOptions) map[string]any {
	first, last, _ := strings.Cut(o.Name, " ")

	payload := map[string]any{
		"eventType":         o.EventType,
		"externalContactId": o.ExternalContactID,
		"customerId":        o.CustomerID,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"platform":          o.Platform,
		"integrationMetadata": map[string]any{
			"id":   "int-" + o.Platform,
			"name": o.Platform,
			"key":  o.Platform,
		},
	}
	if o.InternalContactID != "" {
		payload["internalContactId"] = o.InternalContactID
	}
	if o.OmitData {
		return payload
	}

	fields := map[string]any{
		"fullName":  o.Name,
		"firstName": first,
		"lastName":  last,
	}
	if o.Email != "" {
		fields["primaryEmail"] = o.Email
	}
	if o.Phone != "" {
		fields["primaryPhone"] = o.Phone
	}
	rawFields := map[string]any{}

	if o.JobTitle != nil {
		switch o.Platform {
		case string(models.IntegrationPipedrive):
			rawFields["job_title"] = *o.JobTitle
		default:
			fields["jobTitle"] = *o.JobTitle
		}
	}

	payload["data"] = map[string]any{
		"id":          o.ExternalContactID,
		"name":        o.Name,
		"createdTime": o.CreatedTime,
		"updatedTime": o.UpdatedTime,
		"uri":         fmt.Sprintf("https://%s.example.com/contacts/%s", o.Platform, o.ExternalContactID),
		"fields":      fields,
		"rawFields":   rawFields,
	}
	return payload
}

// WebhookJSON renders the options as a JSON body
func WebhookJSON(o WebhookOptions) []byte {
	raw, err := json.Marshal(WebhookPayload(o))
	if err != nil {
		panic(err)
	}
	return raw
}

// FakeContact returns an unsaved contact owned by customerID
func FakeContact(customerID string) *models.Contact {
	person := gofakeit.Person()
	return &models.Contact{
		CustomerID: customerID,
		Name:       person.FirstName + " " + person.LastName,
		Email:      strings.ToLower(person.Contact.Email),
		Phone:      "+1" + person.Contact.Phone,
		JobTitle:   person.Job.Title,
		Pronouns:   models.NotAvailable,
	}
}

// FakeContactRequest returns a valid contact creation body
func FakeContactRequest() models.ContactRequest {
	person := gofakeit.Person()
	return models.ContactRequest{
		Name:     person.FirstName + " " + person.LastName,
		Email:    strings.ToLower(person.Contact.Email),
		JobTitle: person.Job.Title,
	}
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
