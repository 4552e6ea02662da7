package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPConfig configures the HTTP gateway factory
type HTTPConfig struct {
	BaseURL         string
	WorkspaceKey    string
	WorkspaceSecret string
	TokenTTL        time.Duration
	Timeout         time.Duration
}

// HTTPFactory mints a per-customer token and returns an HTTP client for it.
// Clients are created per call and never cached across customers.
type HTTPFactory struct {
	cfg        HTTPConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPFactory creates a gateway factory
func NewHTTPFactory(cfg HTTPConfig) *HTTPFactory {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPFactory{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

// Client returns a gateway client authenticated as the customer
func (f *HTTPFactory) Client(ctx context.Context, auth Auth) (Client, error) {
	if f.cfg.BaseURL == "" {
		return nil, NewClientError(errors.New("gateway base URL is not configured"))
	}

	token, err := GenerateToken(f.cfg.WorkspaceKey, f.cfg.WorkspaceSecret, auth, f.cfg.TokenTTL, f.now())
	if err != nil {
		return nil, NewClientError(err)
	}

	return &httpClient{
		baseURL: f.cfg.BaseURL,
		token:   token,
		http:    f.httpClient,
	}, nil
}

// tokenClaims are the claims the gateway expects on customer tokens
type tokenClaims struct {
	CustomerID   string `json:"id"`
	CustomerName string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS512 customer token with the workspace secret
func GenerateToken(workspaceKey, workspaceSecret string, auth Auth, ttl time.Duration, now time.Time) (string, error) {
	if workspaceKey == "" || workspaceSecret == "" {
		return "", errors.New("workspace credentials are not configured")
	}
	if auth.CustomerID == "" {
		return "", errors.New("customer id is required")
	}

	name := auth.CustomerName
	if name == "" {
		name = auth.CustomerID
	}

	claims := &tokenClaims{
		CustomerID:   auth.CustomerID,
		CustomerName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    workspaceKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(workspaceSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign gateway token: %w", err)
	}
	return signed, nil
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type connectionsResponse struct {
	Items []Connection `json:"items"`
}

// Connections lists the customer's connections
func (c *httpClient) Connections(ctx context.Context) ([]Connection, error) {
	var resp connectionsResponse
	if err := c.do(ctx, http.MethodGet, "/connections", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return resp.Items, nil
}

// RunAction runs an action on the connection identified by key
func (c *httpClient) RunAction(ctx context.Context, key, action string, payload any) (*ActionResult, error) {
	path := fmt.Sprintf("/connections/%s/actions/%s/run", url.PathEscape(key), url.PathEscape(action))

	var result ActionResult
	if err := c.do(ctx, http.MethodPost, path, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to run %s on %s: %w", action, key, err)
	}
	return &result, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
