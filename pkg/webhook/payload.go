package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jordanlanch/contactsync/pkg/models"
)

// Event types delivered by the gateway
const (
	EventCreateContact         = "create-contact"
	EventUpdateContact         = "update-contact"
	EventDeleteContact         = "delete-contact"
	EventCreateContactInternal = "create-contact-internal"
)

// IntegrationMetadata identifies the platform that emitted the event
type IntegrationMetadata struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Event is a contact change notification.
// Data holds the platform-specific record, or nil when the body carried none.
type Event struct {
	EventType           string              `json:"eventType"`
	ExternalContactID   string              `json:"externalContactId"`
	CustomerID          string              `json:"customerId"`
	Timestamp           string              `json:"timestamp,omitempty"`
	Platform            string              `json:"platform,omitempty"`
	IntegrationMetadata IntegrationMetadata `json:"integrationMetadata"`
	InternalContactID   string              `json:"internalContactId,omitempty"`
	Data                ContactRecord       `json:"data,omitempty"`

	dataErr error
}

// DataError reports why a present data blob could not be decoded.
// Data is nil in that case and the event still reaches the engine.
func (e *Event) DataError() error {
	return e.dataErr
}

// PlatformKey is the integration key, falling back to the platform field
func (e *Event) PlatformKey() string {
	if e.IntegrationMetadata.Key != "" {
		return e.IntegrationMetadata.Key
	}
	return e.Platform
}

type eventEnvelope struct {
	EventType           string              `json:"eventType"`
	ExternalContactID   string              `json:"externalContactId"`
	CustomerID          string              `json:"customerId"`
	Timestamp           string              `json:"timestamp,omitempty"`
	Platform            string              `json:"platform,omitempty"`
	IntegrationMetadata IntegrationMetadata `json:"integrationMetadata"`
	InternalContactID   string              `json:"internalContactId,omitempty"`
	Data                json.RawMessage     `json:"data,omitempty"`
}

// UnmarshalJSON decodes the envelope and picks the record variant by platform key
func (e *Event) UnmarshalJSON(raw []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}

	*e = Event{
		EventType:           env.EventType,
		ExternalContactID:   env.ExternalContactID,
		CustomerID:          env.CustomerID,
		Timestamp:           env.Timestamp,
		Platform:            env.Platform,
		IntegrationMetadata: env.IntegrationMetadata,
		InternalContactID:   env.InternalContactID,
	}

	data := strings.TrimSpace(string(env.Data))
	if data == "" || data == "null" {
		return nil
	}

	record, err := DecodeRecord(e.PlatformKey(), env.Data)
	if err != nil {
		e.dataErr = fmt.Errorf("invalid %s contact data: %w", e.PlatformKey(), err)
		return nil
	}
	e.Data = record
	return nil
}

// DecodeRecord decodes a contact record for the given platform key.
// Unknown keys decode into a GenericRecord.
func DecodeRecord(key string, raw []byte) (ContactRecord, error) {
	var record ContactRecord
	switch models.IntegrationType(key) {
	case models.IntegrationHubSpot:
		record = &HubSpotRecord{}
	case models.IntegrationPipedrive:
		record = &PipedriveRecord{}
	default:
		record = &GenericRecord{}
	}

	if err := json.Unmarshal(raw, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RecordID is a platform record id. Numeric ids keep their literal text;
// any other non-string value decodes as empty.
type RecordID string

func (id *RecordID) UnmarshalJSON(raw []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*id = RecordID(t)
	case json.Number:
		*id = RecordID(t.String())
	default:
		*id = ""
	}
	return nil
}

// OptionalString holds a string attribute; non-string values decode as unset
type OptionalString string

func (s *OptionalString) UnmarshalJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	str, _ := v.(string)
	*s = OptionalString(str)
	return nil
}

// Ptr returns nil when the value is empty
func (s OptionalString) Ptr() *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

// RecordBase carries the fields every platform record has
type RecordBase struct {
	ID          RecordID `json:"id"`
	Name        string   `json:"name,omitempty"`
	CreatedTime string   `json:"createdTime,omitempty"`
	UpdatedTime string   `json:"updatedTime,omitempty"`
	URI         string   `json:"uri,omitempty"`
}

// CoreFields are the unified contact fields every platform maps
type CoreFields struct {
	FullName     string `json:"fullName,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	PrimaryEmail string `json:"primaryEmail,omitempty"`
	PrimaryPhone string `json:"primaryPhone,omitempty"`
}

// ContactRecord is the platform-specific payload of a contact event
type ContactRecord interface {
	Base() RecordBase
	Core() CoreFields
	// JobTitle returns the job title or nil when the platform did not send one
	JobTitle() *string
}

// HubSpotFields are the unified fields of a HubSpot contact
type HubSpotFields struct {
	CoreFields
	JobTitle    OptionalString `json:"jobTitle,omitempty"`
	CompanyName OptionalString `json:"companyName,omitempty"`
	Stage       OptionalString `json:"stage,omitempty"`
}

// HubSpotRecord is a HubSpot contact as delivered by the gateway
type HubSpotRecord struct {
	RecordBase
	Fields        HubSpotFields  `json:"fields"`
	UnifiedFields map[string]any `json:"unifiedFields,omitempty"`
	RawFields     map[string]any `json:"rawFields,omitempty"`
}

func (r *HubSpotRecord) Base() RecordBase { return r.RecordBase }
func (r *HubSpotRecord) Core() CoreFields { return r.Fields.CoreFields }

// JobTitle prefers the unified fields and falls back to the raw jobtitle property
func (r *HubSpotRecord) JobTitle() *string {
	if v := r.Fields.JobTitle.Ptr(); v != nil {
		return v
	}
	if v := firstString(r.UnifiedFields, "jobTitle"); v != nil {
		return v
	}
	return firstString(r.RawFields, "jobtitle")
}

// PipedriveFields are the unified fields of a Pipedrive person
type PipedriveFields struct {
	CoreFields
	JobTitle OptionalString `json:"jobTitle,omitempty"`
}

// PipedriveRawFields are the native Pipedrive person attributes
type PipedriveRawFields struct {
	JobTitle OptionalString `json:"job_title,omitempty"`
	OrgName  OptionalString `json:"org_name,omitempty"`
}

// PipedriveRecord is a Pipedrive person as delivered by the gateway
type PipedriveRecord struct {
	RecordBase
	Fields        PipedriveFields    `json:"fields"`
	UnifiedFields map[string]any     `json:"unifiedFields,omitempty"`
	RawFields     PipedriveRawFields `json:"rawFields"`
}

func (r *PipedriveRecord) Base() RecordBase { return r.RecordBase }
func (r *PipedriveRecord) Core() CoreFields { return r.Fields.CoreFields }

// JobTitle reads the unified field first, then rawFields.job_title
func (r *PipedriveRecord) JobTitle() *string {
	if v := r.Fields.JobTitle.Ptr(); v != nil {
		return v
	}
	if v := firstString(r.UnifiedFields, "jobTitle"); v != nil {
		return v
	}
	return r.RawFields.JobTitle.Ptr()
}

// GenericRecord holds data for platforms without a dedicated variant
type GenericRecord struct {
	RecordBase
	Fields        CoreFields     `json:"fields"`
	UnifiedFields map[string]any `json:"unifiedFields,omitempty"`
	RawFields     map[string]any `json:"rawFields,omitempty"`
}

func (r *GenericRecord) Base() RecordBase { return r.RecordBase }
func (r *GenericRecord) Core() CoreFields { return r.Fields }

// JobTitle checks unified fields, then common raw spellings
func (r *GenericRecord) JobTitle() *string {
	if v := firstString(r.UnifiedFields, "jobTitle"); v != nil {
		return v
	}
	return firstString(r.RawFields, "jobTitle", "job_title", "jobtitle")
}

func firstString(m map[string]any, keys ...string) *string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}
