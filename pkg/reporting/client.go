package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/config"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

const (
	defaultTimeout       = 15 * time.Second
	errorBodyReadLimit   = 4096
	ordersCreatedDateFmt = "2006-01-02"
	tenantHeader         = "X-Tenant-ID"
)

var errBaseURLRequired = errors.New("reporting base url is required")

// Client is a thin wrapper over the Reporting API read endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	proxyURL   string
	apiKey     string
	tenantID   string
	logger     *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for request/response tracing.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logger = logg
	}
}

// NewClient builds the Reporting API client from configuration.
func NewClient(cfg config.ReportingConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		proxyURL:   strings.TrimRight(strings.TrimSpace(cfg.ProxyURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		tenantID:   strings.TrimSpace(cfg.TenantID),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Fetch runs one operation and returns the raw JSON body.
func (c *Client) Fetch(ctx context.Context, op Operation, params map[string]string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) Customer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, OpCustomer, map[string]string{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Customers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	if err := c.do(ctx, OpCustomers, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, sku string) (*Product, error) {
	var out Product
	if err := c.do(ctx, OpProduct, map[string]string{"sku": sku}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, OpProducts, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrdersCreated returns orders created in [start, end], keyed by order id.
func (c *Client) OrdersCreated(ctx context.Context, start, end time.Time) (map[string]Order, error) {
	out := map[string]Order{}
	params := map[string]string{
		"start": start.UTC().Format(ordersCreatedDateFmt),
		"end":   end.UTC().Format(ordersCreatedDateFmt),
	}
	if err := c.do(ctx, OpOrdersCreated, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Clubs(ctx context.Context) ([]Club, error) {
	var out []Club
	if err := c.do(ctx, OpClubs, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Members resolves the customer ids a source item denotes. A search item is
// itself a customer id and needs no round trip.
func (c *Client) Members(ctx context.Context, kind enums.SourceKind, sourceID string) ([]string, error) {
	var op Operation
	switch kind {
	case enums.SourceKindSearch:
		return []string{sourceID}, nil
	case enums.SourceKindTag:
		op = OpTagMembers
	case enums.SourceKindGroup:
		op = OpGroupMembers
	case enums.SourceKindClub:
		op = OpClubMembers
	case enums.SourceKindQuery:
		op = OpQueryMembers
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported source kind %q", kind))
	}

	var rows []member
	if err := c.do(ctx, op, map[string]string{"id": sourceID}, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ID != "" {
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

func (c *Client) do(ctx context.Context, op Operation, params map[string]string, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "reporting client not configured")
	}
	path, err := op.Path(params)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reporting request")
	}
	target := c.buildURL(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build reporting request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.tenantID != "" {
		req.Header.Set(tenantHeader, c.tenantID)
	}

	c.log(ctx, "request", op, map[string]any{"path": path})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reporting %s failed", op))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		c.log(ctx, "error", op, map[string]any{"status": apiErr.Status, "error": apiErr.Error()})
		return pkgerrors.Wrap(domainCodeForStatus(apiErr.Status), apiErr, fmt.Sprintf("reporting %s failed", op)).
			WithDetails(map[string]any{"status": apiErr.Status, "statusText": apiErr.StatusText, "message": apiErr.Message})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode reporting %s response", op))
	}
	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})
	return nil
}

// buildURL prefixes the CORS proxy, when configured, in front of the full target URL.
func (c *Client) buildURL(path string) string {
	target := c.baseURL + path
	if c.proxyURL == "" {
		return target
	}
	return c.proxyURL + "/" + target
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	if apiErr.StatusText == "" {
		apiErr.StatusText = http.StatusText(resp.StatusCode)
	}
	if apiErr.Message == "" && len(body) > 0 && !json.Valid(body) {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase string, op Operation, fields map[string]any) {
	if c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": string(op),
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("reporting %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("reporting %s", phase))
	}
}
