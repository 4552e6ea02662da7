package webhook

import (
	"github.com/jordanlanch/contactsync/pkg/models"
)

// Validation failure reasons
const (
	MsgNoData         = "No data found in webhook body"
	MsgEmailRequired  = "Primary email is required"
	MsgNameRequired   = "Full name is required"
	msgInvalidKeyBase = "Invalid integration key: "
)

// ValidateBody runs every check a contact-carrying event must pass.
// It returns "" when the event is valid, otherwise the first failure reason.
func ValidateBody(evt *Event) string {
	if evt == nil || evt.Data == nil {
		return MsgNoData
	}
	if reason := ValidateIntegrationMetadata(evt); reason != "" {
		return reason
	}

	core := evt.Data.Core()
	if core.PrimaryEmail == "" {
		return MsgEmailRequired
	}
	if core.FullName == "" {
		return MsgNameRequired
	}
	return ""
}

// ValidateIntegrationMetadata only checks that the event comes from a supported platform
func ValidateIntegrationMetadata(evt *Event) string {
	var key string
	if evt != nil {
		key = evt.IntegrationMetadata.Key
	}
	if !models.IntegrationType(key).IsValid() {
		return msgInvalidKeyBase + key
	}
	return ""
}
