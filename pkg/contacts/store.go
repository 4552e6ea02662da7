package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jordanlanch/contactsync/pkg/database"
	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/models"
)

// Store persists contacts and their platform links.
// Lookups that match nothing return a NOT_FOUND domain error.
type Store interface {
	FindByIDAndCustomer(ctx context.Context, id, customerID string) (*models.Contact, error)
	FindByEmailAndCustomer(ctx context.Context, email, customerID string) (*models.Contact, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	UpdateFieldsByIDAndCustomer(ctx context.Context, id, customerID string, fields models.ContactFields) (*models.Contact, error)
	DeleteByExternalID(ctx context.Context, externalID string) error
	PushIntegration(ctx context.Context, contactID string, integration models.Integration) error
	UpdateIntegrationByExternalID(ctx context.Context, externalID string, fields models.ContactFields) (*models.Contact, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*models.Contact, error)
	DeleteByIDAndCustomer(ctx context.Context, id, customerID string) error
}

// SQLStore implements Store on top of database/sql
type SQLStore struct {
	db  *database.Client
	now func() time.Time
}

// NewSQLStore creates a contact store
func NewSQLStore(db *database.Client) *SQLStore {
	return &SQLStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const contactColumns = `id, customer_id, name, email, phone, job_title, pronouns, created_at, updated_at`

const integrationColumns = `contact_id, type, external_id, account_id, external_created_at, external_updated_at, last_synced_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FindByIDAndCustomer returns the contact with id owned by customerID
func (s *SQLStore) FindByIDAndCustomer(ctx context.Context, id, customerID string) (*models.Contact, error) {
	return s.findOne(ctx, s.db.DB,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND customer_id = ?`, id, customerID)
}

// FindByEmailAndCustomer matches on the normalized email within one tenant
func (s *SQLStore) FindByEmailAndCustomer(ctx context.Context, email, customerID string) (*models.Contact, error) {
	return s.findOne(ctx, s.db.DB,
		`SELECT `+contactColumns+` FROM contacts WHERE email = ? AND customer_id = ? ORDER BY created_at LIMIT 1`,
		NormalizeEmail(email), customerID)
}

// FindByExternalID returns the contact linked to externalID on any platform, across all tenants
func (s *SQLStore) FindByExternalID(ctx context.Context, externalID string) (*models.Contact, error) {
	return s.findOne(ctx, s.db.DB,
		`SELECT `+prefixed("c", contactColumns)+` FROM contacts c
		JOIN contact_integrations ci ON ci.contact_id = c.id
		WHERE ci.external_id = ?
		ORDER BY c.created_at LIMIT 1`, externalID)
}

// Create inserts a contact together with any integrations it carries
func (s *SQLStore) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	now := s.now()
	created := *contact
	created.ID = uuid.NewString()
	created.Email = NormalizeEmail(contact.Email)
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Integrations = append([]models.Integration(nil), contact.Integrations...)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			created.ID, created.CustomerID, created.Name, created.Email, created.Phone,
			created.JobTitle, created.Pronouns, created.CreatedAt, created.UpdatedAt)
		if err != nil {
			return err
		}

		for i, integration := range created.Integrations {
			if err := s.insertIntegration(ctx, tx, created.ID, i, integration); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreError("create contact", err)
	}

	return &created, nil
}

// UpdateFieldsByIDAndCustomer applies a partial update scoped to the owning customer
func (s *SQLStore) UpdateFieldsByIDAndCustomer(ctx context.Context, id, customerID string, fields models.ContactFields) (*models.Contact, error) {
	var updated *models.Contact
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sets, args := s.fieldAssignments(fields)
		args = append(args, id, customerID)

		res, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE id = ? AND customer_id = ?`), args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.NewNotFoundError("contact")
		}

		updated, err = s.findOne(ctx, tx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return nil, wrapStoreError("update contact", err)
	}
	return updated, nil
}

// DeleteByExternalID removes the contact linked to externalID
func (s *SQLStore) DeleteByExternalID(ctx context.Context, externalID string) error {
	res, err := s.db.DB.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM contacts WHERE id IN (
			SELECT contact_id FROM contact_integrations WHERE external_id = ?
		)`), externalID)
	if err != nil {
		return wrapStoreError("delete contact", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrapStoreError("delete contact", err)
	} else if n == 0 {
		return domain.NewNotFoundError("contact")
	}
	return nil
}

// PushIntegration appends a platform link to the contact. Pushing a link the
// contact already holds refreshes its timestamps; a link owned by another
// contact is a CONFLICT.
func (s *SQLStore) PushIntegration(ctx context.Context, contactID string, integration models.Integration) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		lock := `SELECT id FROM contacts WHERE id = ?`
		if s.db.Driver == database.DriverPostgres {
			lock += ` FOR UPDATE`
		}
		var id string
		if err := tx.QueryRowContext(ctx, s.db.Rebind(lock), contactID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("contact")
			}
			return err
		}

		var owner string
		err := tx.QueryRowContext(ctx, s.db.Rebind(
			`SELECT contact_id FROM contact_integrations WHERE type = ? AND external_id = ?`),
			string(integration.Type), integration.ExternalID).Scan(&owner)
		switch {
		case err == nil && owner != contactID:
			return domain.NewConflictError(fmt.Sprintf("%s contact %s is already linked", integration.Type, integration.ExternalID))
		case err == nil:
			if err := s.refreshIntegration(ctx, tx, integration); err != nil {
				return err
			}
		case errors.Is(err, sql.ErrNoRows):
			var position int
			if err := tx.QueryRowContext(ctx, s.db.Rebind(
				`SELECT COALESCE(MAX(position), -1) + 1 FROM contact_integrations WHERE contact_id = ?`),
				contactID).Scan(&position); err != nil {
				return err
			}
			if err := s.insertIntegration(ctx, tx, contactID, position, integration); err != nil {
				return err
			}
		default:
			return err
		}

		_, err = tx.ExecContext(ctx, s.db.Rebind(`UPDATE contacts SET updated_at = ? WHERE id = ?`), s.now(), contactID)
		return err
	})
	if err != nil {
		return wrapStoreError("push integration", err)
	}
	return nil
}

// UpdateIntegrationByExternalID overwrites the linked contact's core fields and
// marks the link as freshly synced.
func (s *SQLStore) UpdateIntegrationByExternalID(ctx context.Context, externalID string, fields models.ContactFields) (*models.Contact, error) {
	var updated *models.Contact
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var contactID string
		if err := tx.QueryRowContext(ctx, s.db.Rebind(
			`SELECT contact_id FROM contact_integrations WHERE external_id = ? ORDER BY position LIMIT 1`),
			externalID).Scan(&contactID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("contact")
			}
			return err
		}

		now := s.now()
		sets, args := s.fieldAssignments(fields)
		args = append(args, contactID)
		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE contact_integrations SET external_updated_at = ?, last_synced_at = ? WHERE external_id = ?`),
			now, now, externalID); err != nil {
			return err
		}

		var err error
		updated, err = s.findOne(ctx, tx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, contactID)
		return err
	})
	if err != nil {
		return nil, wrapStoreError("update contact integration", err)
	}
	return updated, nil
}

// ListByCustomer returns every contact owned by customerID, newest first
func (s *SQLStore) ListByCustomer(ctx context.Context, customerID string) ([]*models.Contact, error) {
	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(
		`SELECT `+contactColumns+` FROM contacts WHERE customer_id = ? ORDER BY created_at DESC, id`), customerID)
	if err != nil {
		return nil, wrapStoreError("list contacts", err)
	}
	defer rows.Close()

	var list []*models.Contact
	byID := make(map[string]*models.Contact)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, wrapStoreError("list contacts", err)
		}
		list = append(list, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("list contacts", err)
	}
	rows.Close()

	links, err := s.db.DB.QueryContext(ctx, s.db.Rebind(
		`SELECT `+prefixed("ci", integrationColumns)+` FROM contact_integrations ci
		JOIN contacts c ON c.id = ci.contact_id
		WHERE c.customer_id = ?
		ORDER BY ci.contact_id, ci.position`), customerID)
	if err != nil {
		return nil, wrapStoreError("list contacts", err)
	}
	defer links.Close()

	for links.Next() {
		contactID, integration, err := scanIntegration(links)
		if err != nil {
			return nil, wrapStoreError("list contacts", err)
		}
		if c, ok := byID[contactID]; ok {
			c.Integrations = append(c.Integrations, integration)
		}
	}
	if err := links.Err(); err != nil {
		return nil, wrapStoreError("list contacts", err)
	}

	return list, nil
}

// DeleteByIDAndCustomer removes a contact owned by customerID
func (s *SQLStore) DeleteByIDAndCustomer(ctx context.Context, id, customerID string) error {
	res, err := s.db.DB.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM contacts WHERE id = ? AND customer_id = ?`), id, customerID)
	if err != nil {
		return wrapStoreError("delete contact", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrapStoreError("delete contact", err)
	} else if n == 0 {
		return domain.NewNotFoundError("contact")
	}
	return nil
}

func (s *SQLStore) findOne(ctx context.Context, q queryer, query string, args ...any) (*models.Contact, error) {
	row := q.QueryRowContext(ctx, s.db.Rebind(query), args...)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("contact")
		}
		return nil, wrapStoreError("find contact", err)
	}

	rows, err := q.QueryContext(ctx, s.db.Rebind(
		`SELECT `+integrationColumns+` FROM contact_integrations WHERE contact_id = ? ORDER BY position`), c.ID)
	if err != nil {
		return nil, wrapStoreError("load integrations", err)
	}
	defer rows.Close()

	for rows.Next() {
		_, integration, err := scanIntegration(rows)
		if err != nil {
			return nil, wrapStoreError("load integrations", err)
		}
		c.Integrations = append(c.Integrations, integration)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("load integrations", err)
	}

	return c, nil
}

func (s *SQLStore) insertIntegration(ctx context.Context, tx *sql.Tx, contactID string, position int, integration models.Integration) error {
	var lastSynced sql.NullTime
	if integration.LastSyncedAt != nil {
		lastSynced = sql.NullTime{Time: integration.LastSyncedAt.UTC(), Valid: true}
	}

	_, err := tx.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO contact_integrations (contact_id, position, type, external_id, account_id, external_created_at, external_updated_at, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		contactID, position, string(integration.Type), integration.ExternalID, integration.AccountID,
		integration.ExternalCreatedAt.UTC(), integration.ExternalUpdatedAt.UTC(), lastSynced)
	if database.IsUniqueViolation(err) {
		return domain.NewConflictError(fmt.Sprintf("%s contact %s is already linked", integration.Type, integration.ExternalID))
	}
	return err
}

func (s *SQLStore) refreshIntegration(ctx context.Context, tx *sql.Tx, integration models.Integration) error {
	synced := s.now()
	if integration.LastSyncedAt != nil {
		synced = integration.LastSyncedAt.UTC()
	}
	_, err := tx.ExecContext(ctx, s.db.Rebind(
		`UPDATE contact_integrations SET external_updated_at = ?, last_synced_at = ? WHERE type = ? AND external_id = ?`),
		integration.ExternalUpdatedAt.UTC(), synced, string(integration.Type), integration.ExternalID)
	return err
}

// fieldAssignments builds the SET list for a partial update; updated_at is always bumped
func (s *SQLStore) fieldAssignments(fields models.ContactFields) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}

	add("name", fields.Name)
	if fields.Email != nil {
		email := NormalizeEmail(*fields.Email)
		add("email", &email)
	}
	add("phone", fields.Phone)
	add("job_title", fields.JobTitle)
	add("pronouns", fields.Pronouns)

	sets = append(sets, "updated_at = ?")
	args = append(args, s.now())
	return sets, args
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*models.Contact, error) {
	var c models.Contact
	if err := row.Scan(&c.ID, &c.CustomerID, &c.Name, &c.Email, &c.Phone, &c.JobTitle, &c.Pronouns, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Integrations = []models.Integration{}
	return &c, nil
}

func scanIntegration(row scanner) (string, models.Integration, error) {
	var (
		contactID   string
		integration models.Integration
		kind        string
		lastSynced  sql.NullTime
	)
	if err := row.Scan(&contactID, &kind, &integration.ExternalID, &integration.AccountID,
		&integration.ExternalCreatedAt, &integration.ExternalUpdatedAt, &lastSynced); err != nil {
		return "", integration, err
	}
	integration.Type = models.IntegrationType(kind)
	if lastSynced.Valid {
		t := lastSynced.Time
		integration.LastSyncedAt = &t
	}
	return contactID, integration, nil
}

// wrapStoreError keeps domain errors intact and wraps everything else
func wrapStoreError(op string, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.NewStoreError(op, err)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
