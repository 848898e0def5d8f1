// Package supabase is a REST client for the managed Postgres backend: the
// PostgREST table surface, server-side RPC functions and the auth subsystem.
// Consistency, uniqueness and row-level security are all enforced by the
// backend; this package only shapes requests and decodes responses.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds backend connection settings.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string
	// AnonKey is the public API key; requests with it are subject to
	// row-level security.
	AnonKey string
	// ServiceKey is the service-role key. Requests with it bypass
	// row-level security and must never leave the server.
	ServiceKey string
	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client
	// Retry overrides DefaultRetryConfig. A zero MaxRetries disables
	// retries entirely.
	Retry *RetryConfig
}

// Client talks to one backend project with a fixed API key.
type Client struct {
	baseURL    string
	apiKey     string
	serviceKey string
	httpClient *http.Client
}

// New creates a client keyed with the anon key. Use Admin for the
// privileged handle.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase: URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase: anon key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if retry.MaxRetries > 0 {
		wrapped := *httpClient
		wrapped.Transport = newRetryTransport(httpClient.Transport, retry)
		httpClient = &wrapped
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
	}, nil
}

// Admin returns a handle keyed with the service-role key. Queries through it
// bypass row-level security.
func (c *Client) Admin() (*Client, error) {
	if c.serviceKey == "" {
		return nil, fmt.Errorf("supabase: service key not configured")
	}
	admin := *c
	admin.apiKey = c.serviceKey
	return &admin, nil
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// RPC calls a server-side Postgres function.
func (c *Client) RPC(ctx context.Context, fn string, params any) (*Response, error) {
	var body io.Reader
	if params != nil {
		data, err := marshalBody(params)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+fn, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, "")
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

// Auth returns the auth sub-client.
func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c}
}

// Health performs a minimal authenticated request against the REST surface.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, "")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("supabase: backend unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// setHeaders attaches the API key and, when a user access token is present,
// switches the bearer to it so the backend enforces that user's row access.
func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", c.apiKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(body, resp.StatusCode)
	}
	return out, nil
}
