// Package backend is the client of the partshop data service. It builds the
// single shared handle application code queries through.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Client is a handle to the data service. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
	opts    Options
	log     *zap.Logger
}

// NewClient validates cfg and builds a handle. When the URL or the key is
// missing it logs which of the two were set, never their values, and returns
// ErrMissingConfig.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	key := strings.TrimSpace(cfg.AnonKey)
	if base == "" || key == "" {
		log.Error("backend configuration incomplete",
			zap.Bool(EnvURL, base != ""),
			zap.Bool(EnvAnonKey, key != ""),
		)
		return nil, ErrMissingConfig
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("backend: invalid %s: %w", EnvURL, err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = defaultHTTPClient()
	}
	return &Client{
		baseURL: base,
		apiKey:  key,
		token:   key,
		http:    hc,
		opts: Options{
			AutoRefreshToken:   false,
			PersistSession:     false,
			DetectSessionInURL: false,
		},
		log: log,
	}, nil
}

// MustNewClient is NewClient for program initialization; it panics on error.
func MustNewClient(cfg Config, log *zap.Logger) *Client {
	c, err := NewClient(cfg, log)
	if err != nil {
		panic(err)
	}
	return c
}

// NewFromEnv builds a handle from LoadConfig.
func NewFromEnv(log *zap.Logger) (*Client, error) {
	return NewClient(LoadConfig(), log)
}

// Options reports the session settings of the handle.
func (c *Client) Options() Options { return c.opts }

// URL is the service endpoint the handle talks to.
func (c *Client) URL() string { return c.baseURL }

// WithToken returns a copy of the handle that authenticates as the holder of
// an access token. The anon key is still sent as apikey.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// From starts a query on table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, params: url.Values{}}
}

// APIError is an error response from the service, passed through as is.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		c.log.Debug("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("backend: decode response: %w", err)
	}
	return nil
}
