package syncsettings

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jordanlanch/contactsync/pkg/database"
	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// Store reads and writes per-customer sync settings
type Store interface {
	// Get returns the saved settings or the defaults when none were saved
	Get(ctx context.Context, customerID string) (*models.SyncSettings, error)
	Save(ctx context.Context, customerID string, req models.SyncSettingsRequest) (*models.SyncSettings, error)
}

// SQLStore implements Store on the sync_settings table
type SQLStore struct {
	db  *database.Client
	now func() time.Time
}

// NewSQLStore creates a sync settings store
func NewSQLStore(db *database.Client) *SQLStore {
	return &SQLStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the customer's settings
func (s *SQLStore) Get(ctx context.Context, customerID string) (*models.SyncSettings, error) {
	var st models.SyncSettings
	err := s.db.DB.QueryRowContext(ctx, s.db.Rebind(
		`SELECT customer_id, auto_sync, sync_frequency, conflict_resolution, sync_direction, webhook_notifications, created_at, updated_at
		FROM sync_settings WHERE customer_id = ?`), customerID).
		Scan(&st.CustomerID, &st.AutoSync, &st.SyncFrequency, &st.ConflictResolution, &st.SyncDirection,
			&st.WebhookNotifications, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSyncSettings(customerID), nil
	}
	if err != nil {
		return nil, domain.NewStoreError("load sync settings", err)
	}
	return &st, nil
}

// Save upserts the customer's settings
func (s *SQLStore) Save(ctx context.Context, customerID string, req models.SyncSettingsRequest) (*models.SyncSettings, error) {
	if req.AutoSync == nil || req.WebhookNotifications == nil {
		return nil, domain.NewValidationError("autoSync and webhookNotifications are required")
	}

	now := s.now()
	st := &models.SyncSettings{
		CustomerID:           customerID,
		AutoSync:             *req.AutoSync,
		SyncFrequency:        req.SyncFrequency,
		ConflictResolution:   req.ConflictResolution,
		SyncDirection:        req.SyncDirection,
		WebhookNotifications: *req.WebhookNotifications,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := s.db.DB.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO sync_settings (customer_id, auto_sync, sync_frequency, conflict_resolution, sync_direction, webhook_notifications, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id) DO UPDATE SET
			auto_sync = excluded.auto_sync,
			sync_frequency = excluded.sync_frequency,
			conflict_resolution = excluded.conflict_resolution,
			sync_direction = excluded.sync_direction,
			webhook_notifications = excluded.webhook_notifications,
			updated_at = excluded.updated_at`),
		st.CustomerID, st.AutoSync, st.SyncFrequency, st.ConflictResolution, st.SyncDirection,
		st.WebhookNotifications, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return nil, domain.NewStoreError("save sync settings", err)
	}

	return s.Get(ctx, customerID)
}
