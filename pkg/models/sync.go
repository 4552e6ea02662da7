package models

import "time"

// Sync settings enumerations
const (
	SyncFrequencyRealtime = "realtime"
	SyncFrequency5Min     = "5min"
	SyncFrequency1Hour    = "1hour"
	SyncFrequencyDaily    = "daily"

	ConflictLastWriteWins = "last-write-wins"
	ConflictManual        = "manual"
	ConflictKeepLocal     = "keep-local"

	SyncDirectionBidirectional = "bidirectional"
	SyncDirectionInboundOnly   = "inbound-only"
	SyncDirectionOutboundOnly  = "outbound-only"
)

// SyncSettings holds a customer's synchronization preferences
type SyncSettings struct {
	CustomerID           string    `json:"customerId"`
	AutoSync             bool      `json:"autoSync"`
	SyncFrequency        string    `json:"syncFrequency"`
	ConflictResolution   string    `json:"conflictResolution"`
	SyncDirection        string    `json:"syncDirection"`
	WebhookNotifications bool      `json:"webhookNotifications"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// DefaultSyncSettings returns the settings applied to customers that never saved any
func DefaultSyncSettings(customerID string) *SyncSettings {
	return &SyncSettings{
		CustomerID:           customerID,
		AutoSync:             true,
		SyncFrequency:        SyncFrequencyRealtime,
		ConflictResolution:   ConflictLastWriteWins,
		SyncDirection:        SyncDirectionBidirectional,
		WebhookNotifications: true,
	}
}

// AllowsOutbound reports whether local changes may be pushed to external platforms
func (s *SyncSettings) AllowsOutbound() bool {
	return s.AutoSync && s.SyncDirection != SyncDirectionInboundOnly
}

// SyncSettingsRequest is the body for saving sync settings
type SyncSettingsRequest struct {
	AutoSync             *bool  `json:"autoSync" validate:"required"`
	SyncFrequency        string `json:"syncFrequency" validate:"required,oneof=realtime 5min 1hour daily"`
	ConflictResolution   string `json:"conflictResolution" validate:"required,oneof=last-write-wins manual keep-local"`
	SyncDirection        string `json:"syncDirection" validate:"required,oneof=bidirectional inbound-only outbound-only"`
	WebhookNotifications *bool  `json:"webhookNotifications" validate:"required"`
}

// Activity actions
const (
	ActionContactCreated = "contact_created"
	ActionContactUpdated = "contact_updated"
	ActionContactDeleted = "contact_deleted"
	ActionContactLinked  = "contact_linked"
)

// InitiatorSyncApp marks activity started inside this application
const InitiatorSyncApp = "sync_app"

// ActivityLog is one entry of the sync audit trail
type ActivityLog struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customerId"`
	Action       string    `json:"action"`
	ContactID    string    `json:"contactId,omitempty"`
	ContactName  string    `json:"contactName"`
	ContactEmail string    `json:"contactEmail"`
	Initiator    string    `json:"initiator"`
	Success      bool      `json:"success"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ActivityFilter narrows an activity log listing
type ActivityFilter struct {
	Action    string `query:"action" validate:"omitempty,oneof=contact_created contact_updated contact_deleted contact_linked"`
	Initiator string `query:"initiator" validate:"omitempty,oneof=sync_app hubspot pipedrive"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

// ActivityListResponse represents a list of activity entries
type ActivityListResponse struct {
	Data  []*ActivityLog `json:"data"`
	Count int            `json:"count"`
}
