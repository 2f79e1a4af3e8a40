// Package client talks to a running imaged server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imaged/pkg/types"
)

// DefaultServer is used when neither --server nor IMAGED_SERVER is set.
const DefaultServer = "http://127.0.0.1:5000"

// Client is a thin JSON client for the imaged API.
type Client struct {
	base string
	hc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// New returns a client for the server at base. A bare host:port gets an
// http:// scheme.
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		base = DefaultServer
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q has no host", base)
	}
	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		// Generation can take minutes on CPU.
		hc: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Base returns the normalized server URL.
func (c *Client) Base() string { return c.base }

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Models returns the current index.
func (c *Client) Models(ctx context.Context) (types.Index, error) {
	var out types.Index
	return out, c.do(ctx, http.MethodGet, "/models", nil, &out)
}

// Rescan asks the server to rescan its models directory.
func (c *Client) Rescan(ctx context.Context) (types.Index, error) {
	var out types.Index
	return out, c.do(ctx, http.MethodPost, "/models/rescan", nil, &out)
}

// Load loads uid into the active slot.
func (c *Client) Load(ctx context.Context, uid string) (types.LoadResponse, error) {
	var out types.LoadResponse
	return out, c.do(ctx, http.MethodPost, "/models/"+url.PathEscape(uid)+"/load", nil, &out)
}

// Unload empties the active slot.
func (c *Client) Unload(ctx context.Context) (types.OKResponse, error) {
	var out types.OKResponse
	return out, c.do(ctx, http.MethodPost, "/unload", nil, &out)
}

// Reload reloads the current model from disk.
func (c *Client) Reload(ctx context.Context) (types.ReloadResponse, error) {
	var out types.ReloadResponse
	return out, c.do(ctx, http.MethodPost, "/reload", nil, &out)
}

// Loaded reports the uid in the active slot, if any.
func (c *Client) Loaded(ctx context.Context) (types.LoadedResponse, error) {
	var out types.LoadedResponse
	return out, c.do(ctx, http.MethodGet, "/loaded", nil, &out)
}

// Status returns the server status snapshot.
func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	return out, c.do(ctx, http.MethodGet, "/status", nil, &out)
}

// Generate runs one generation on the loaded model.
func (c *Client) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	var out types.GenerateResponse
	return out, c.do(ctx, http.MethodPost, "/generate", req, &out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var er types.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return &APIError{Status: status, Message: er.Error}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
