package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/cryptoverse/internal/model"
	"github.com/roach88/cryptoverse/internal/status"
)

const (
	// DefaultTimeout bounds each request when no *http.Client is injected.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "cryptoverse-sync/1"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 64 << 20
)

// Endpoint paths relative to the API base URL.
const (
	PathRules    = "/rules"
	PathStarLogs = "/star-logs"
)

// Fetcher is the capability the synchronizer pulls from.
type Fetcher interface {
	// Rules fetches the ruleset. A nil ruleset with a nil error means the
	// server answered with an empty body.
	Rules(ctx context.Context) (*model.Ruleset, error)

	// StarLogs fetches one page of star logs.
	StarLogs(ctx context.Context, q StarLogsQuery) ([]model.StarLog, error)
}

// StarLogsQuery selects one page of star logs. Nil fields are not sent.
type StarLogsQuery struct {
	// SinceTime selects records with time strictly greater than it.
	SinceTime *int64
	Limit     *int64
	Offset    *int64
}

// Params returns the query parameters in wire order.
func (q StarLogsQuery) Params() []Param {
	return []Param{
		{Key: "since_time", Value: q.SinceTime},
		{Key: "limit", Value: q.Limit},
		{Key: "offset", Value: q.Offset},
	}
}

// Client is an HTTP Fetcher.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Rules implements Fetcher.
func (c *Client) Rules(ctx context.Context) (*model.Ruleset, error) {
	return Get[model.Ruleset](ctx, c, c.baseURL+PathRules)
}

// StarLogs implements Fetcher.
func (c *Client) StarLogs(ctx context.Context, q StarLogsQuery) ([]model.StarLog, error) {
	logs, err := Get[[]model.StarLog](ctx, c, BuildURL(c.baseURL+PathStarLogs, q.Params()...))
	if err != nil || logs == nil {
		return nil, err
	}
	return *logs, nil
}

// Get performs one GET against rawURL and decodes the JSON body into T.
// An empty or null body yields (nil, nil).
func Get[T any](ctx context.Context, c *Client, rawURL string) (*T, error) {
	const op = "fetch"

	body, err := c.do(ctx, rawURL)
	if err != nil {
		kind := status.KindTransport
		if ctx.Err() != nil {
			kind = status.KindCanceled
		}
		slog.Error("fetch transport failure", "url", rawURL, "kind", kind, "error", err)
		return nil, status.New(kind, op, err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		slog.Debug("fetch returned empty body", "url", rawURL)
		return nil, nil
	}

	var v *T
	if err := json.Unmarshal(body, &v); err != nil {
		slog.Error("fetch decode failure", "url", rawURL, "bytes", len(body), "error", err)
		return nil, status.New(status.KindDecode, op, fmt.Errorf("decode %s: %w", rawURL, err))
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d: %s", rawURL, res.StatusCode, snippet(data))
	}
	return data, nil
}

// snippet trims a response body for error messages.
func snippet(data []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
