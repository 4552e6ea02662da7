package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/models"
)

func createContact(t *testing.T, env *testEnv, customerID, body string) *models.ContactMutationResponse {
	t.Helper()
	h := NewContactHandler(env.contacts)

	c, rec := customerContext(newJSONRequest(http.MethodPost, "/api/v1/contacts", body), customerID)
	require.NoError(t, h.CreateContact(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.ContactMutationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestContactHandler_Create(t *testing.T) {
	env := setupTestEnv(t)

	resp := createContact(t, env, "cust-1", `{"name":"Jane Doe","email":"Jane@X.com","phone":"(650) 253-0000"}`)

	require.NotNil(t, resp.Contact)
	assert.Equal(t, "jane@x.com", resp.Contact.Email)
	assert.Equal(t, "+16502530000", resp.Contact.Phone)
	assert.Equal(t, models.NotAvailable, resp.Contact.JobTitle)
	require.Len(t, resp.Propagation, 2)
	assert.Equal(t, "hubspot", resp.Propagation[0].IntegrationKey)
	assert.Equal(t, "pipedrive", resp.Propagation[1].IntegrationKey)
	assert.True(t, resp.Propagation[0].Success)
	assert.Len(t, resp.Contact.Integrations, 2)
}

func TestContactHandler_CreateValidation(t *testing.T) {
	env := setupTestEnv(t)
	h := NewContactHandler(env.contacts)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing email", `{"name":"Jane"}`, http.StatusBadRequest},
		{"bad email", `{"name":"Jane","email":"nope"}`, http.StatusBadRequest},
		{"malformed json", `{"name":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := customerContext(newJSONRequest(http.MethodPost, "/api/v1/contacts", tt.body), "cust-1")
			require.NoError(t, h.CreateContact(c))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Empty(t, env.gateway.Calls())
}

func TestContactHandler_CreateKeepsUnparsablePhone(t *testing.T) {
	env := setupTestEnv(t)

	resp := createContact(t, env, "cust-1", `{"name":"Jane","email":"jane@x.com","phone":"555"}`)
	assert.Equal(t, "555", resp.Contact.Phone)
}

func TestContactHandler_RequiresCustomer(t *testing.T) {
	env := setupTestEnv(t)
	h := NewContactHandler(env.contacts)

	c, rec := customerContext(newJSONRequest(http.MethodGet, "/api/v1/contacts", ""), "")
	require.NoError(t, h.ListContacts(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContactHandler_ListAndGetAreTenantScoped(t *testing.T) {
	env := setupTestEnv(t)
	h := NewContactHandler(env.contacts)

	mine := createContact(t, env, "cust-1", `{"name":"Jane Doe","email":"jane@x.com"}`)
	createContact(t, env, "cust-2", `{"name":"John Roe","email":"john@y.com"}`)

	c, rec := customerContext(newJSONRequest(http.MethodGet, "/api/v1/contacts", ""), "cust-1")
	require.NoError(t, h.ListContacts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var list models.ContactListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, mine.Contact.ID, list.Data[0].ID)

	c, rec = customerContext(newJSONRequest(http.MethodGet, "/api/v1/contacts/"+mine.Contact.ID, ""), "cust-2")
	c.SetParamNames("id")
	c.SetParamValues(mine.Contact.ID)
	require.NoError(t, h.GetContact(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactHandler_Update(t *testing.T) {
	env := setupTestEnv(t)
	h := NewContactHandler(env.contacts)
	created := createContact(t, env, "cust-1", `{"name":"Jane Doe","email":"jane@x.com"}`)

	c, rec := customerContext(newJSONRequest(http.MethodPut, "/api/v1/contacts/"+created.Contact.ID,
		`{"name":"Jane Smith","email":"jane.smith@x.com","jobTitle":"CTO"}`), "cust-1")
	c.SetParamNames("id")
	c.SetParamValues(created.Contact.ID)
	require.NoError(t, h.UpdateContact(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ContactMutationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Jane Smith", resp.Contact.Name)
	assert.Equal(t, "CTO", resp.Contact.JobTitle)
	require.Len(t, resp.Propagation, 2)

	var updates int
	for _, call := range env.gateway.Calls() {
		if call.Action == gateway.ActionUpdateContacts {
			updates++
		}
	}
	assert.Equal(t, 2, updates)
}

func TestContactHandler_Delete(t *testing.T) {
	env := setupTestEnv(t)
	h := NewContactHandler(env.contacts)
	created := createContact(t, env, "cust-1", `{"name":"Jane Doe","email":"jane@x.com"}`)

	c, rec := customerContext(newJSONRequest(http.MethodDelete, "/api/v1/contacts/"+created.Contact.ID, ""), "cust-1")
	c.SetParamNames("id")
	c.SetParamValues(created.Contact.ID)
	require.NoError(t, h.DeleteContact(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.store.FindByIDAndCustomer(context.Background(), created.Contact.ID, "cust-1")
	assert.True(t, domain.IsNotFound(err))

	deletes := 0
	for _, call := range env.gateway.Calls() {
		if call.Action == gateway.ActionDeleteContacts {
			deletes++
		}
	}
	assert.Equal(t, 2, deletes)
}

func TestContactHandler_PropagationErrorKeepsLocalWrite(t *testing.T) {
	env := setupTestEnv(t)
	env.gateway.FailConnections(assert.AnError)

	resp := createContact(t, env, "cust-1", `{"name":"Jane Doe","email":"jane@x.com"}`)
	assert.NotEmpty(t, resp.PropagationError)
	assert.Empty(t, resp.Propagation)

	_, err := env.store.FindByIDAndCustomer(context.Background(), resp.Contact.ID, "cust-1")
	assert.NoError(t, err)
}
