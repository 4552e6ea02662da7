package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/contactsync/pkg/activity"
	"github.com/jordanlanch/contactsync/pkg/api/middleware"
	"github.com/jordanlanch/contactsync/pkg/contacts"
	"github.com/jordanlanch/contactsync/pkg/database"
	"github.com/jordanlanch/contactsync/pkg/gateway/gatewaytest"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/propagation"
	"github.com/jordanlanch/contactsync/pkg/reconcile"
	"github.com/jordanlanch/contactsync/pkg/syncsettings"
)

type testEnv struct {
	db         *database.Client
	store      *contacts.SQLStore
	activity   *activity.SQLStore
	settings   *syncsettings.SQLStore
	gateway    *gatewaytest.Fake
	propagator *propagation.Propagator
	engine     *reconcile.Engine
	contacts   *contacts.Service
}

// setupTestEnv wires the real stores, propagator and engine over an in-memory database
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewSQLiteClient("file:"+uuid.NewString()+"?mode=memory&cache=shared&_fk=1", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := contacts.NewSQLStore(db)
	activityStore := activity.NewSQLStore(db)
	settings := syncsettings.NewSQLStore(db)
	fake := gatewaytest.New("hubspot", "pipedrive")

	prop := propagation.New(fake, store, settings, nil, logger.Discard(), propagation.Config{
		Timeout:     time.Second,
		Concurrency: 2,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	})

	engine := reconcile.NewEngine(reconcile.Dependencies{
		Store:      store,
		Propagator: prop,
		Activity:   activityStore,
		Logger:     logger.Discard(),
	}, reconcile.Config{LockTTL: 5 * time.Second})

	return &testEnv{
		db:         db,
		store:      store,
		activity:   activityStore,
		settings:   settings,
		gateway:    fake,
		propagator: prop,
		engine:     engine,
		contacts:   contacts.NewService(store, prop, activityStore, "US", logger.Discard()),
	}
}

func newJSONRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// customerContext builds a context authenticated as customerID
func customerContext(req *http.Request, customerID string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if customerID != "" {
		c.Set(middleware.ContextCustomerID, customerID)
		c.Set(middleware.ContextCustomerName, "Acme")
	}
	return c, rec
}
