package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/contactsync/pkg/domain"
	"github.com/jordanlanch/contactsync/pkg/gateway"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/models"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// captureLog routes the package logger into a buffer for the duration of fn
func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(logger.NewWithWriter("debug", &buf))
	t.Cleanup(func() { SetLogger(logger.Discard()) })
	fn()
	return buf.String()
}

func TestValidationError(t *testing.T) {
	internalMsg := "Key: 'ContactRequest.Email' Error:Field validation for 'Email' failed on the 'email' tag"

	var rec *httptest.ResponseRecorder
	logged := captureLog(t, func() {
		var c echo.Context
		c, rec = newContext(http.MethodPost, "/api/v1/contacts")
		require.NoError(t, ValidationError(c, errors.New(internalMsg)))
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", parseBody(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), internalMsg)
	assert.Contains(t, logged, "/api/v1/contacts")
	assert.Contains(t, logged, "ContactRequest.Email")
}

func TestStoreError_NoInternalDetails(t *testing.T) {
	internalMsg := "pq: duplicate key value violates unique constraint"

	var rec *httptest.ResponseRecorder
	logged := captureLog(t, func() {
		var c echo.Context
		c, rec = newContext(http.MethodGet, "/api/v1/contacts")
		require.NoError(t, StoreError(c, errors.New(internalMsg)))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "database_error", parseBody(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.Contains(t, logged, internalMsg)
	assert.Contains(t, logged, `"component":"api"`)
}

func TestInternalError_NoInternalDetails(t *testing.T) {
	var rec *httptest.ResponseRecorder
	captureLog(t, func() {
		var c echo.Context
		c, rec = newContext(http.MethodGet, "/api/v1/logs")
		require.NoError(t, InternalError(c, errors.New("nil pointer dereference at 0xdeadbeef")))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "0xdeadbeef")
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
}

func TestSimpleErrors(t *testing.T) {
	tests := []struct {
		name      string
		call      func(echo.Context) error
		wantCode  int
		wantError string
		wantMsg   string
	}{
		{"unauthorized", UnauthorizedError, http.StatusUnauthorized, "unauthorized", "You are not authorized to access this resource."},
		{"not found", func(c echo.Context) error { return NotFoundError(c, "Contact") }, http.StatusNotFound, "not_found", "Contact not found"},
		{"conflict", func(c echo.Context) error { return ConflictError(c, "Contact already linked") }, http.StatusConflict, "conflict", "Contact already linked"},
		{"bad request", func(c echo.Context) error { return BadRequestError(c, "Invalid platform type") }, http.StatusBadRequest, "bad_request", "Invalid platform type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/contacts/1")
			require.NoError(t, tt.call(c))

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := parseBody(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestFromDomain(t *testing.T) {
	SetLogger(logger.Discard())

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
	}{
		{"not found", domain.NewNotFoundError("Contact"), http.StatusNotFound, "not_found"},
		{"validation", domain.NewValidationError("Contact ID is required"), http.StatusBadRequest, "validation_error"},
		{"bad request", domain.NewBadRequestError("Invalid platform type"), http.StatusBadRequest, "bad_request"},
		{"conflict", domain.NewConflictError("Contact already linked"), http.StatusConflict, "conflict"},
		{"unauthorized", domain.NewUnauthorizedError(), http.StatusUnauthorized, "unauthorized"},
		{"store", domain.NewStoreError("create contact", errors.New("disk full")), http.StatusInternalServerError, "database_error"},
		{"integration", domain.NewIntegrationError("hubspot", errors.New("502")), http.StatusBadGateway, "integration_error"},
		{"gateway client", gateway.NewClientError(errors.New("no secret")), http.StatusBadGateway, "integration_error"},
		{"wrapped domain", fmt.Errorf("service: %w", domain.NewNotFoundError("Contact")), http.StatusNotFound, "not_found"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/contacts/1")
			require.NoError(t, FromDomain(c, tt.err))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantError, parseBody(t, rec).Error)
		})
	}
}

func TestFromDomain_NotFoundMessage(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/v1/contacts/1")
	require.NoError(t, FromDomain(c, domain.NewNotFoundError("Contact")))
	assert.Equal(t, "Contact not found", parseBody(t, rec).Message)
}
