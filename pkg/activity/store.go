package activity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jordanlanch/contactsync/pkg/database"
	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// DefaultLimit caps listings that do not set one
const DefaultLimit = 50

// Store is the sync audit trail
type Store interface {
	Record(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, customerID string, filter models.ActivityFilter) ([]*models.ActivityLog, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// SQLStore implements Store on the activity_logs table
type SQLStore struct {
	db  *database.Client
	now func() time.Time
}

// NewSQLStore creates an activity store
func NewSQLStore(db *database.Client) *SQLStore {
	return &SQLStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an entry; ID and CreatedAt are assigned when empty
func (s *SQLStore) Record(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CustomerID == "" || entry.Action == "" {
		return domain.NewValidationError("activity entry requires customer and action")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.Initiator == "" {
		entry.Initiator = models.InitiatorSyncApp
	}

	_, err := s.db.DB.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO activity_logs (id, customer_id, action, contact_id, contact_name, contact_email, initiator, success, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.CustomerID, entry.Action, entry.ContactID, entry.ContactName, entry.ContactEmail,
		entry.Initiator, entry.Success, entry.Details, entry.CreatedAt.UTC())
	if err != nil {
		return domain.NewStoreError("record activity", err)
	}
	return nil
}

// List returns a customer's entries, newest first
func (s *SQLStore) List(ctx context.Context, customerID string, filter models.ActivityFilter) ([]*models.ActivityLog, error) {
	query := `SELECT id, customer_id, action, contact_id, contact_name, contact_email, initiator, success, details, created_at
		FROM activity_logs WHERE customer_id = ?`
	args := []any{customerID}

	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	if filter.Initiator != "" {
		query += ` AND initiator = ?`
		args = append(args, filter.Initiator)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, domain.NewStoreError("list activity", err)
	}
	defer rows.Close()

	entries := []*models.ActivityLog{}
	for rows.Next() {
		var e models.ActivityLog
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Action, &e.ContactID, &e.ContactName, &e.ContactEmail,
			&e.Initiator, &e.Success, &e.Details, &e.CreatedAt); err != nil {
			return nil, domain.NewStoreError("list activity", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list activity", err)
	}
	return entries, nil
}

// Prune deletes entries created before olderThan and reports how many were removed
func (s *SQLStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, s.db.Rebind(`DELETE FROM activity_logs WHERE created_at < ?`), olderThan.UTC())
	if err != nil {
		return 0, domain.NewStoreError("prune activity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.NewStoreError("prune activity", err)
	}
	return n, nil
}

// NewEntry builds an entry for an action on contact; contact may be nil
func NewEntry(customerID, action string, contact *models.Contact, initiator string, success bool, details string) *models.ActivityLog {
	entry := &models.ActivityLog{
		CustomerID: customerID,
		Action:     action,
		Initiator:  initiator,
		Success:    success,
		Details:    details,
	}
	if contact != nil {
		entry.ContactID = contact.ID
		entry.ContactName = contact.Name
		entry.ContactEmail = contact.Email
	}
	return entry
}
