// Package apiclient is a small JSON-oriented HTTP client for API checks. A
// Client must be initialized with a base URL before use and disposed when the
// scenario that owns it is done.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/network"
	"github.com/xkilldash9x/hrmcheck/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// UninitializedClientError is returned by a verb called before Init or after
// Dispose.
type UninitializedClientError struct {
	Method string
}

func (e *UninitializedClientError) Error() string {
	return fmt.Sprintf("apiclient: %s called before Init", e.Method)
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport replaces the network layer. Compression decoding still wraps it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) { c.insecure = skip }
}

// scope is the per-Init request context.
type scope struct {
	baseURL string
	headers http.Header
	http    *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	logger    *zap.Logger
	timeout   time.Duration
	transport http.RoundTripper
	insecure  bool

	mu    sync.RWMutex
	scope *scope
	token string
}

func New(opts ...Option) *Client {
	c := &Client{
		logger:  zap.NewNop(),
		timeout: network.DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("apiclient")
	return c
}

// Init scopes the client to baseURL with JSON default headers. Calling it
// again replaces the previous scope.
func (c *Client) Init(ctx context.Context, baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", baseURL)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	next := &scope{
		baseURL: strings.TrimRight(u.String(), "/"),
		headers: headers,
		http:    c.newHTTPClient(),
	}

	c.mu.Lock()
	prev := c.scope
	c.scope = next
	c.mu.Unlock()

	if prev != nil {
		prev.http.CloseIdleConnections()
	}
	c.logger.Debug("Request context initialized.", zap.String("base_url", next.baseURL))
	return nil
}

func (c *Client) newHTTPClient() *http.Client {
	cfg := network.NewDefaultClientConfig()
	cfg.RequestTimeout = c.timeout
	cfg.IgnoreTLSErrors = c.insecure
	cfg.Logger = c.logger

	if c.transport == nil {
		return network.NewClient(cfg)
	}
	client := network.NewClient(cfg)
	client.Transport = network.NewCompressionTransport(c.transport)
	return client
}

// SetAuthToken makes later requests carry "Authorization: Bearer <token>".
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) ClearAuthToken() { c.SetAuthToken("") }

// Dispose releases the request context. It is idempotent and safe before Init.
func (c *Client) Dispose() {
	c.mu.Lock()
	s := c.scope
	c.scope = nil
	c.mu.Unlock()

	if s != nil {
		s.http.CloseIdleConnections()
		c.logger.Debug("Request context disposed.")
	}
}

// Get sends params as the query string.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (*NormalizedResponse, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

// Post encodes body as JSON. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*NormalizedResponse, error) {
	return c.do(ctx, http.MethodPost, endpoint, nil, body)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any) (*NormalizedResponse, error) {
	return c.do(ctx, http.MethodPut, endpoint, nil, body)
}

func (c *Client) Delete(ctx context.Context, endpoint string) (*NormalizedResponse, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, body any) (*NormalizedResponse, error) {
	c.mu.RLock()
	s, token := c.scope, c.token
	c.mu.RUnlock()
	if s == nil {
		return nil, &UninitializedClientError{Method: method}
	}

	target, err := buildURL(s.baseURL, endpoint, params)
	if err != nil {
		return nil, err
	}

	var payload io.Reader
	var raw []byte
	if body != nil {
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", method, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header = s.headers.Clone()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Sending request.",
		zap.String("method", method),
		zap.String("url", target),
		observability.RedactHeaders("headers", req.Header),
		zap.String("body", observability.RedactBody("application/json", raw)),
	)

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	normalized := normalize(resp.StatusCode, resp.Header, data)
	c.logger.Debug("Received response.",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		observability.RedactHeaders("headers", resp.Header),
	)
	return normalized, nil
}

// buildURL joins endpoint onto base and encodes params as the query.
func buildURL(base, endpoint string, params map[string]string) (string, error) {
	target := base
	if endpoint != "" {
		target = base + "/" + strings.TrimLeft(endpoint, "/")
	}
	if len(params) == 0 {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
