package oda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/folkevalget/folkevalget/metrics"
)

const (
	// DefaultBaseURL is the public ODA v3 endpoint.
	DefaultBaseURL = "https://oda.ft.dk/api"
	// DefaultPageSize is the rows-per-request the API serves reliably.
	DefaultPageSize = 100
	// DefaultPageDelay spaces paginated requests to stay polite.
	DefaultPageDelay = 200 * time.Millisecond
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second

	maxRetries = 3
	userAgent  = "folkevalget-data-fetcher/1.0"

	// maxResponseSize limits one page body; expanded Sagstrin pages run
	// large but never near this.
	maxResponseSize = 64 * 1024 * 1024
)

// Pre-encoded endpoint names; the Danish ø must reach the wire as
// percent-encoded UTF-8.
const (
	endpointActor         = "Akt%C3%B8r"
	endpointActorType     = "Akt%C3%B8rtype"
	endpointActorRelation = "Akt%C3%B8rAkt%C3%B8r"
	endpointCaseStep      = "Sagstrin"
	endpointCaseDocument  = "SagDokument"
	endpointBallotType    = "Stemmetype"
	endpointVoteType      = "Afstemningstype"
)

// Client talks to the ODA API with retries, paging, and rate spacing.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pageSize     int
	pageDelay    time.Duration
	retryBackoff time.Duration
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root, typically a
// test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPageSize sets the rows requested per page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithPageDelay sets the pause between paginated requests.
func WithPageDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.pageDelay = d
		}
	}
}

// WithRetryBackoff sets the base backoff between retries; the wait
// grows linearly with the attempt number.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.retryBackoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an ODA client with conservative defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		pageSize:     DefaultPageSize,
		pageDelay:    DefaultPageDelay,
		retryBackoff: 1500 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query carries the OData system options for one collection request.
// Zero fields are omitted from the URL.
type Query struct {
	Filter  string
	OrderBy string
	Expand  string
	Select  string
}

// page is the OData v3 response envelope. The API signals overflow on
// expanded collections with odata.nextLink rather than paging headers.
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"odata.nextLink"`
}

// Collect drains a collection endpoint page by page, stopping at the
// first short page.
func Collect[T any](ctx context.Context, c *Client, endpoint string, q Query) ([]T, error) {
	var items []T
	skip := 0
	for {
		var p page[T]
		if err := c.getJSON(ctx, c.collectionURL(endpoint, q, c.pageSize, skip), &p); err != nil {
			return nil, err
		}
		if len(p.Value) == 0 {
			break
		}
		metrics.FetchRows.Add(float64(len(p.Value)))
		items = append(items, p.Value...)
		c.logger.Debug("fetched page", "endpoint", endpoint, "rows", len(items))
		if len(p.Value) < c.pageSize {
			break
		}
		skip += c.pageSize
		if err := c.pause(ctx); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// First fetches at most n rows from an endpoint in a single request.
func First[T any](ctx context.Context, c *Client, endpoint string, q Query, n int) ([]T, error) {
	var p page[T]
	if err := c.getJSON(ctx, c.collectionURL(endpoint, q, n, 0), &p); err != nil {
		return nil, err
	}
	metrics.FetchRows.Add(float64(len(p.Value)))
	return p.Value, nil
}

// FollowLink drains an odata.nextLink chain starting at url.
func FollowLink[T any](ctx context.Context, c *Client, url string) ([]T, error) {
	var items []T
	for url != "" {
		var p page[T]
		if err := c.getJSON(ctx, url, &p); err != nil {
			return nil, err
		}
		metrics.FetchRows.Add(float64(len(p.Value)))
		items = append(items, p.Value...)
		url = p.NextLink
		if url != "" {
			if err := c.pause(ctx); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

// getJSON fetches one URL into out, retrying transient failures with a
// linear backoff.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := c.doRequest(ctx, url, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		metrics.FetchRetries.Inc()
		backoff := time.Duration(attempt) * c.retryBackoff
		c.logger.Warn("retrying request",
			"url", url,
			"attempt", attempt,
			"max_retries", maxRetries,
			"backoff", backoff,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	metrics.FetchRequests.Inc()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 4096)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body := io.LimitReader(resp.Body, maxResponseSize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// pause waits the configured inter-page delay or until the context
// cancels.
func (c *Client) pause(ctx context.Context) error {
	if c.pageDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.pageDelay):
		return nil
	}
}

// collectionURL assembles an endpoint URL with OData system options in
// a fixed order so identical requests produce identical URLs.
func (c *Client) collectionURL(endpoint string, q Query, top, skip int) string {
	var sb strings.Builder
	sb.WriteString(c.baseURL)
	sb.WriteByte('/')
	sb.WriteString(endpoint)

	sep := byte('?')
	add := func(key, value string) {
		sb.WriteByte(sep)
		sep = '&'
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(value)
	}
	if q.Filter != "" {
		add("$filter", escapeQueryValue(q.Filter))
	}
	if q.OrderBy != "" {
		add("$orderby", escapeQueryValue(q.OrderBy))
	}
	if q.Expand != "" {
		add("$expand", escapeQueryValue(q.Expand))
	}
	if q.Select != "" {
		add("$select", escapeQueryValue(q.Select))
	}
	add("$format", "json")
	add("$top", strconv.Itoa(top))
	add("$skip", strconv.Itoa(skip))
	return sb.String()
}

// escapeQueryValue percent-encodes a query value while leaving the
// characters the ODA parser wants literal: ( ) , ' / : $ and the
// unreserved set. Spaces become %20, never +.
func escapeQueryValue(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			sb.WriteByte(ch)
		case ch == '-' || ch == '_' || ch == '.' || ch == '~':
			sb.WriteByte(ch)
		case ch == '(' || ch == ')' || ch == ',' || ch == '\'' || ch == '/' || ch == ':' || ch == '$':
			sb.WriteByte(ch)
		default:
			fmt.Fprintf(&sb, "%%%02X", ch)
		}
	}
	return sb.String()
}
