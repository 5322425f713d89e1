package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const cvrBaseURL = "https://cvrapi.dk/api"

// Company is a CVR register match for a company named in an interest
// registration.
type Company struct {
	CVRNumber string `json:"cvr_nummer"`
	Name      string `json:"virksomhedsnavn"`
	Type      string `json:"type"`
	Industry  string `json:"branche"`
	Address   string `json:"adresse"`
	Active    bool   `json:"aktiv"`
}

// CVRClient looks up companies in the public CVR register via
// cvrapi.dk.
type CVRClient struct {
	baseURL    string
	httpClient *http.Client
	cache      LookupCache
	logger     *slog.Logger
}

// CVROption configures a CVRClient.
type CVROption func(*CVRClient)

// WithCVRBaseURL overrides the API base URL.
func WithCVRBaseURL(u string) CVROption {
	return func(c *CVRClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCVRHTTPClient sets a custom HTTP client.
func WithCVRHTTPClient(httpClient *http.Client) CVROption {
	return func(c *CVRClient) {
		c.httpClient = httpClient
	}
}

// WithCVRCache sets the lookup cache shared across runs.
func WithCVRCache(cache LookupCache) CVROption {
	return func(c *CVRClient) {
		c.cache = cache
	}
}

// WithCVRLogger sets the logger.
func WithCVRLogger(l *slog.Logger) CVROption {
	return func(c *CVRClient) {
		c.logger = l
	}
}

// NewCVRClient creates a CVR lookup client.
func NewCVRClient(opts ...CVROption) *CVRClient {
	c := &CVRClient{
		baseURL:    cvrBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      NewMemoryCache(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cvrResponse is the subset of the cvrapi.dk record the report needs.
type cvrResponse struct {
	VAT          json.Number `json:"vat"`
	Name         string      `json:"name"`
	CompanyType  string      `json:"companytype"`
	IndustryDesc string      `json:"industrydesc"`
	Address      string      `json:"address"`
	ZIPCode      string      `json:"zipcode"`
	City         string      `json:"city"`
	EndDate      *string     `json:"enddate"`
}

// Lookup searches the register for a company by name. A nil Company
// with nil error means no match.
func (c *CVRClient) Lookup(ctx context.Context, companyName string) (*Company, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, nil
	}

	if raw, ok := cacheGet(ctx, c.cache, "cvr_search", companyName); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		var cached Company
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	query := url.Values{}
	query.Set("search", companyName)
	query.Set("country", "dk")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		cachePut(ctx, c.cache, "cvr_search", companyName, nil)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload cvrResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var addressParts []string
	for _, part := range []string{payload.Address, payload.ZIPCode, payload.City} {
		if part != "" {
			addressParts = append(addressParts, part)
		}
	}
	company := &Company{
		CVRNumber: payload.VAT.String(),
		Name:      payload.Name,
		Type:      payload.CompanyType,
		Industry:  payload.IndustryDesc,
		Address:   strings.Join(addressParts, ", "),
		Active:    payload.EndDate == nil,
	}

	if raw, err := json.Marshal(company); err == nil {
		cachePut(ctx, c.cache, "cvr_search", companyName, raw)
	}
	return company, nil
}

// quotedName matches a company name wrapped in typographic or plain
// quotes inside a registration description.
var quotedName = regexp.MustCompile(`["“”«»„]([^"“”«»„]+)["“”«»„]`)

// QuotedCompanyName extracts the first quoted company name from an
// interest registration description.
func QuotedCompanyName(description string) string {
	match := quotedName.FindStringSubmatch(description)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}
