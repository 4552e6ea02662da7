package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("refused") })

	tests := []struct {
		name     string
		db       Pinger
		cache    Pinger
		wantCode int
		wantBody string
	}{
		{"all up", up, up, http.StatusOK, `{"status":"healthy","database":"up","cache":"up"}`},
		{"no cache configured", up, nil, http.StatusOK, `{"status":"healthy","database":"up","cache":"disabled"}`},
		{"database down", down, up, http.StatusServiceUnavailable, `{"status":"unhealthy","database":"down"}`},
		{"cache down", up, down, http.StatusServiceUnavailable, `{"status":"unhealthy","cache":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

			require.NoError(t, NewHealthHandler(tt.db, tt.cache).Health(c))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHealthHandler_SQLiteDatabase(t *testing.T) {
	env := setupTestEnv(t)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, NewHealthHandler(env.db, nil).Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
