package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/models"
)

func TestPlatformHandler_GetPlatformData(t *testing.T) {
	env := setupTestEnv(t)
	env.gateway.SetOutput("hubspot", gateway.ActionFindContactByID, map[string]any{
		"id":       "hs-1",
		"fullName": "Jane Doe",
	})

	h := NewPlatformHandler(env.propagator)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	c, rec := customerContext(newJSONRequest(http.MethodGet, "/api/v1/platforms/hubspot/data?id=hs-1", ""), "cust-1")
	c.SetParamNames("platformType")
	c.SetParamValues("hubspot")
	require.NoError(t, h.GetPlatformData(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PlatformDataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hubspot", resp.Metadata.PlatformType)
	assert.Equal(t, "success", resp.Metadata.LastSyncStatus)
	data, ok := resp.Metadata.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", data["fullName"])
	assert.Equal(t, fixed, resp.LastSync)
	assert.Nil(t, resp.URL)
	assert.Contains(t, rec.Body.String(), `"url":null`)

	calls := env.gateway.CallsFor("hubspot")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"id": "hs-1"}, calls[0].Payload)
}

func TestPlatformHandler_BadRequests(t *testing.T) {
	env := setupTestEnv(t)
	h := NewPlatformHandler(env.propagator)

	tests := []struct {
		name     string
		platform string
		target   string
		message  string
	}{
		{"unknown platform", "salesforce", "/api/v1/platforms/salesforce/data?id=1", "Invalid platform type"},
		{"missing id", "pipedrive", "/api/v1/platforms/pipedrive/data", "Contact ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := customerContext(newJSONRequest(http.MethodGet, tt.target, ""), "cust-1")
			c.SetParamNames("platformType")
			c.SetParamValues(tt.platform)
			require.NoError(t, h.GetPlatformData(c))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
	assert.Empty(t, env.gateway.Calls())
}

func TestPlatformHandler_GetPlatformDataNotFound(t *testing.T) {
	env := setupTestEnv(t)
	env.gateway.FailOn("pipedrive", gateway.ActionFindContactByID, &gateway.APIError{StatusCode: http.StatusNotFound, Body: "not found"})
	h := NewPlatformHandler(env.propagator)

	c, rec := customerContext(newJSONRequest(http.MethodGet, "/api/v1/platforms/pipedrive/data?id=9", ""), "cust-1")
	c.SetParamNames("platformType")
	c.SetParamValues("pipedrive")
	require.NoError(t, h.GetPlatformData(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func deletePlatformContext(platform, externalID string) (*http.Request, []string, []string) {
	req := newJSONRequest(http.MethodDelete, "/api/v1/platforms/"+platform+"/"+externalID, "")
	return req, []string{"platformType", "externalId"}, []string{platform, externalID}
}

func TestPlatformHandler_DeleteRetriesTransientFailures(t *testing.T) {
	env := setupTestEnv(t)
	env.gateway.FailTimes("pipedrive", gateway.ActionDeleteContacts, 2, &gateway.APIError{StatusCode: http.StatusServiceUnavailable})
	h := NewPlatformHandler(env.propagator)

	req, names, values := deletePlatformContext("pipedrive", "pd-7")
	c, rec := customerContext(req, "cust-1")
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h.DeletePlatformContact(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Contact deleted from pipedrive"}`, rec.Body.String())
	assert.Len(t, env.gateway.CallsFor("pipedrive"), 3)
}

func TestPlatformHandler_DeleteClientErrorNotRetried(t *testing.T) {
	env := setupTestEnv(t)
	env.gateway.FailOn("hubspot", gateway.ActionDeleteContacts, &gateway.APIError{StatusCode: http.StatusNotFound})
	h := NewPlatformHandler(env.propagator)

	req, names, values := deletePlatformContext("hubspot", "hs-404")
	c, rec := customerContext(req, "cust-1")
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h.DeletePlatformContact(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, env.gateway.CallsFor("hubspot"), 1)
}

func TestPlatformHandler_GatewayUnavailable(t *testing.T) {
	env := setupTestEnv(t)
	env.gateway.FailInit(assert.AnError)
	h := NewPlatformHandler(env.propagator)

	req, names, values := deletePlatformContext("hubspot", "hs-1")
	c, rec := customerContext(req, "cust-1")
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h.DeletePlatformContact(c))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
