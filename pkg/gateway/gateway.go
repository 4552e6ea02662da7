package gateway

import (
	"context"
	"fmt"
)

// Auth identifies the customer a gateway client acts for
type Auth struct {
	CustomerID   string
	CustomerName string
}

// ConnectionIntegration describes the platform behind a connection
type ConnectionIntegration struct {
	ID            string `json:"id"`
	Key           string `json:"key"`
	Name          string `json:"name"`
	IsDeactivated bool   `json:"isDeactivated"`
}

// Connection is one platform connected by the customer
type Connection struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Disconnected bool                  `json:"disconnected"`
	Integration  ConnectionIntegration `json:"integration"`
}

// Key returns the platform key of the connection
func (c Connection) Key() string {
	return c.Integration.Key
}

// IsActive reports whether changes can be pushed through the connection
func (c Connection) IsActive() bool {
	return !c.Disconnected && !c.Integration.IsDeactivated && c.Integration.Key != ""
}

// ActionResult is the response of a gateway action run.
// Output holds whatever JSON value the action returned.
type ActionResult struct {
	Output any `json:"output"`
}

// OutputID returns output.id as a string when output is an object carrying one
func (r *ActionResult) OutputID() (string, bool) {
	if r == nil {
		return "", false
	}
	obj, ok := r.Output.(map[string]any)
	if !ok {
		return "", false
	}
	switch v := obj["id"].(type) {
	case string:
		return v, v != ""
	case float64:
		return fmt.Sprintf("%.0f", v), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// Action names understood by the gateway
const (
	ActionCreateContacts  = "create-contacts"
	ActionUpdateContacts  = "update-contacts"
	ActionDeleteContacts  = "delete-contacts"
	ActionFindContactByID = "find-by-id-contacts"
)

// Client talks to the integration gateway on behalf of one customer
type Client interface {
	// Connections lists the customer's platform connections in gateway order
	Connections(ctx context.Context) ([]Connection, error)

	// RunAction runs a named action on the connection identified by key
	RunAction(ctx context.Context, key, action string, payload any) (*ActionResult, error)
}

// Factory obtains a client for a customer. A failure is reported as *ClientError.
type Factory interface {
	Client(ctx context.Context, auth Auth) (Client, error)
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func(ctx context.Context, auth Auth) (Client, error)

// Client calls f
func (f FactoryFunc) Client(ctx context.Context, auth Auth) (Client, error) {
	return f(ctx, auth)
}

// ClientError reports that a gateway client could not be initialized
type ClientError struct {
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError wraps an initialization failure
func NewClientError(err error) *ClientError {
	return &ClientError{Message: "Failed to initialize Integration.app client", Err: err}
}

// APIError is a non-2xx response from the gateway
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("integration gateway returned %d: %s", e.StatusCode, e.Body)
}
