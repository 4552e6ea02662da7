package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/models"
	"github.com/jordanlanch/contactsync/pkg/testdata"
)

var serviceAuth = gateway.Auth{CustomerID: "cust-1", CustomerName: "Acme"}

// stubPropagator links every created contact to hubspot and records calls
type stubPropagator struct {
	store   Store
	err     error
	actions []string
}

func (p *stubPropagator) CreateAcross(ctx context.Context, auth gateway.Auth, c *models.Contact, exclude ...string) ([]models.PropagationOutcome, error) {
	p.actions = append(p.actions, "create")
	if p.err != nil {
		return nil, p.err
	}
	if err := p.store.PushIntegration(ctx, c.ID, link(models.IntegrationHubSpot, "hs-"+c.ID)); err != nil {
		return nil, err
	}
	return []models.PropagationOutcome{{IntegrationKey: "hubspot", Success: true, ExternalContactID: "hs-" + c.ID}}, nil
}

func (p *stubPropagator) UpdateAcross(ctx context.Context, auth gateway.Auth, c *models.Contact, exclude ...string) ([]models.PropagationOutcome, error) {
	p.actions = append(p.actions, "update")
	return []models.PropagationOutcome{}, p.err
}

func (p *stubPropagator) DeleteAcross(ctx context.Context, auth gateway.Auth, c *models.Contact, exclude ...string) ([]models.PropagationOutcome, error) {
	p.actions = append(p.actions, "delete:"+c.ID)
	return []models.PropagationOutcome{}, p.err
}

func setupTestService(t *testing.T) (*Service, *stubPropagator) {
	t.Helper()
	store := setupTestStore(t)
	prop := &stubPropagator{store: store}
	return NewService(store, prop, nil, "US", logger.Discard()), prop
}

func TestService_CreateNormalizesAndPropagates(t *testing.T) {
	svc, prop := setupTestService(t)
	ctx := context.Background()

	req := testdata.FakeContactRequest()
	req.Phone = "(650) 253-0000"
	req.Pronouns = ""

	resp, err := svc.Create(ctx, serviceAuth, req)
	require.NoError(t, err)

	assert.Equal(t, "+16502530000", resp.Contact.Phone)
	assert.Equal(t, models.NotAvailable, resp.Contact.Pronouns)
	assert.Equal(t, []string{"create"}, prop.actions)
	require.Len(t, resp.Propagation, 1)
	require.Len(t, resp.Contact.Integrations, 1, "links attached by the fan-out are returned")
	assert.Empty(t, resp.PropagationError)
}

func TestService_CreateKeepsUnparsablePhone(t *testing.T) {
	svc, prop := setupTestService(t)

	req := testdata.FakeContactRequest()
	req.Phone = " 555 "

	resp, err := svc.Create(context.Background(), serviceAuth, req)
	require.NoError(t, err)
	assert.Equal(t, "555", resp.Contact.Phone)
	assert.NotEmpty(t, prop.actions)
}

func TestService_PropagationErrorKeepsLocalWrite(t *testing.T) {
	svc, prop := setupTestService(t)
	prop.err = gateway.NewClientError(errors.New("no secret"))

	resp, err := svc.Create(context.Background(), serviceAuth, testdata.FakeContactRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Contact.ID)
	assert.Contains(t, resp.PropagationError, "Failed to initialize Integration.app client")
	assert.Empty(t, resp.Propagation)

	list, err := svc.List(context.Background(), serviceAuth.CustomerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, prop := setupTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, serviceAuth, testdata.FakeContactRequest())
	require.NoError(t, err)
	id := created.Contact.ID

	req := testdata.FakeContactRequest()
	req.Name = "Renamed Person"
	updated, err := svc.Update(ctx, serviceAuth, id, req)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Person", updated.Contact.Name)

	_, err = svc.Update(ctx, gateway.Auth{CustomerID: "cust-2"}, id, req)
	assert.True(t, domain.IsNotFound(err), "updates are tenant scoped")

	_, err = svc.Delete(ctx, serviceAuth, id)
	require.NoError(t, err)

	_, err = svc.Get(ctx, id, serviceAuth.CustomerID)
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.Delete(ctx, serviceAuth, id)
	assert.True(t, domain.IsNotFound(err))

	assert.Equal(t, []string{"create", "update", "delete:" + id}, prop.actions)
}
