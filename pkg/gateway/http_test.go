package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWorkspaceKey    = "ws-key"
	testWorkspaceSecret = "ws-secret"
)

func newTestFactory(t *testing.T, handler http.HandlerFunc) *HTTPFactory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPFactory(HTTPConfig{
		BaseURL:         srv.URL + "/",
		WorkspaceKey:    testWorkspaceKey,
		WorkspaceSecret: testWorkspaceSecret,
	})
}

func parseToken(t *testing.T, header string) *tokenClaims {
	t.Helper()
	require.True(t, strings.HasPrefix(header, "Bearer "))

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
		assert.Equal(t, jwt.SigningMethodHS512.Alg(), token.Method.Alg())
		return []byte(testWorkspaceSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	return claims
}

func TestGenerateToken_Claims(t *testing.T) {
	now := time.Now()
	signed, err := GenerateToken(testWorkspaceKey, testWorkspaceSecret, Auth{CustomerID: "cust-1", CustomerName: "Acme"}, time.Hour, now)
	require.NoError(t, err)

	claims := parseToken(t, "Bearer "+signed)
	assert.Equal(t, "cust-1", claims.CustomerID)
	assert.Equal(t, "Acme", claims.CustomerName)
	assert.Equal(t, testWorkspaceKey, claims.Issuer)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestGenerateToken_Errors(t *testing.T) {
	_, err := GenerateToken("", testWorkspaceSecret, Auth{CustomerID: "c"}, time.Hour, time.Now())
	assert.Error(t, err)

	_, err = GenerateToken(testWorkspaceKey, testWorkspaceSecret, Auth{}, time.Hour, time.Now())
	assert.Error(t, err)
}

func TestHTTPFactory_ClientErrorOnMissingCredentials(t *testing.T) {
	f := NewHTTPFactory(HTTPConfig{BaseURL: "http://gateway.local"})

	_, err := f.Client(context.Background(), Auth{CustomerID: "cust-1"})
	require.Error(t, err)

	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, "Failed to initialize Integration.app client", clientErr.Message)
}

func TestHTTPClient_Connections(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/connections", r.URL.Path)
		claims := parseToken(t, r.Header.Get("Authorization"))
		assert.Equal(t, "cust-1", claims.CustomerID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":"c1","name":"HubSpot","disconnected":false,"integration":{"key":"hubspot","isDeactivated":false}},
			{"id":"c2","name":"Pipedrive","disconnected":true,"integration":{"key":"pipedrive"}}
		]}`))
	})

	client, err := f.Client(context.Background(), Auth{CustomerID: "cust-1", CustomerName: "Acme"})
	require.NoError(t, err)

	conns, err := client.Connections(context.Background())
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "hubspot", conns[0].Key())
	assert.True(t, conns[0].IsActive())
	assert.False(t, conns[1].IsActive())
}

func TestHTTPClient_RunAction(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/connections/hubspot/actions/create-contacts/run", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jane@x.com", body["primaryEmail"])

		_, _ = w.Write([]byte(`{"output":{"id":"hs-42"}}`))
	})

	client, err := f.Client(context.Background(), Auth{CustomerID: "cust-1"})
	require.NoError(t, err)

	result, err := client.RunAction(context.Background(), "hubspot", ActionCreateContacts, map[string]string{"primaryEmail": "jane@x.com"})
	require.NoError(t, err)

	id, ok := result.OutputID()
	assert.True(t, ok)
	assert.Equal(t, "hs-42", id)
}

func TestHTTPClient_APIError(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "connection not found", http.StatusNotFound)
	})

	client, err := f.Client(context.Background(), Auth{CustomerID: "cust-1"})
	require.NoError(t, err)

	_, err = client.RunAction(context.Background(), "hubspot", ActionDeleteContacts, map[string]string{"id": "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "connection not found")
}

func TestHTTPClient_RunActionNonObjectOutput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"boolean", `{"output":true}`, true},
		{"string", `{"output":"ok"}`, "ok"},
		{"null", `{"output":null}`, nil},
		{"empty body", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			client, err := f.Client(context.Background(), Auth{CustomerID: "cust-1"})
			require.NoError(t, err)

			result, err := client.RunAction(context.Background(), "pipedrive", ActionDeleteContacts, map[string]string{"id": "pd-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Output)

			_, ok := result.OutputID()
			assert.False(t, ok)
		})
	}
}

func TestActionResult_OutputID(t *testing.T) {
	tests := []struct {
		name   string
		result *ActionResult
		want   string
		ok     bool
	}{
		{"nil result", nil, "", false},
		{"nil output", &ActionResult{}, "", false},
		{"boolean output", &ActionResult{Output: true}, "", false},
		{"string output", &ActionResult{Output: "deleted"}, "", false},
		{"missing id", &ActionResult{Output: map[string]any{}}, "", false},
		{"string id", &ActionResult{Output: map[string]any{"id": "abc"}}, "abc", true},
		{"numeric id", &ActionResult{Output: map[string]any{"id": float64(1234)}}, "1234", true},
		{"empty id", &ActionResult{Output: map[string]any{"id": ""}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.result.OutputID()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
