// Package transport sends resolved requests to a remote API.
package transport

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
)

// Request is a fully resolved call: the path has no placeholders left
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Response is the raw remote answer
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport dispatches requests. Implementations must be safe for concurrent
// use.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

const (
	// DefaultAPIKeyHeader is the header used by WithAPIKey when none is given
	DefaultAPIKeyHeader = "x-api-key"

	userAgent = "oascall/1.0"
)

// Client is the net/http Transport
type Client struct {
	URL string

	apiKeyHeader string
	apiKey       string
	bearer       string
	username     string
	password     string

	client *http.Client
}

// Option configures a Client
type Option func(*Client)

// New creates a client for the absolute base URL
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		URL:    strings.TrimRight(u.String(), "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}

	for _, o := range options {
		o(c)
	}

	return c, nil
}

// WithAPIKey sends key in header on every request
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		c.apiKeyHeader = header
		c.apiKey = key
	}
}

func WithBearer(bearer string) Option {
	return func(c *Client) {
		c.bearer = bearer
	}
}

func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds each request; zero disables the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// Do sends req and reads the full response body
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target := c.URL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		httpReq.Header.Set(c.apiKeyHeader, c.apiKey)
	}
	if c.username != "" && c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}
	if c.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
