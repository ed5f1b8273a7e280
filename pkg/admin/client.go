package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/commerce-it/mockserver/pkg/httputil"
	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/requestlog"
	"github.com/commerce-it/mockserver/pkg/rule"
)

// Client is an HTTP client for the admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the admin API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks that the admin API is up and returns the rule count.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddRule registers a rule and returns it with its assigned ID.
func (c *Client) AddRule(ctx context.Context, def rule.Definition) (*RuleStatus, error) {
	var out RuleStatus
	if err := c.doJSON(ctx, http.MethodPost, "/rules", def, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRules returns the registered rules in match order.
func (c *Client) ListRules(ctx context.Context) ([]RuleStatus, error) {
	var out []RuleStatus
	if err := c.doJSON(ctx, http.MethodGet, "/rules", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset removes all rules and recorded requests.
func (c *Client) Reset(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/rules", nil, http.StatusNoContent, nil)
}

// Verify checks rule expectations. Violations are returned as a
// *registry.VerificationError.
func (c *Client) Verify(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/verify", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		var out VerifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode verify response: %w", err)
		}
		return &registry.VerificationError{Violations: out.Violations}
	default:
		return httputil.ParseError(resp)
	}
}

// Requests returns journaled requests, newest first. filter may be nil.
func (c *Client) Requests(ctx context.Context, filter *requestlog.Filter) ([]*requestlog.Entry, error) {
	path := "/requests"
	if filter != nil {
		q := url.Values{}
		if filter.Method != "" {
			q.Set("method", filter.Method)
		}
		if filter.Path != "" {
			q.Set("path", filter.Path)
		}
		if filter.MatchedRuleID != "" {
			q.Set("rule", filter.MatchedRuleID)
		}
		if filter.Unmatched {
			q.Set("unmatched", "true")
		}
		if filter.Limit > 0 {
			q.Set("limit", strconv.Itoa(filter.Limit))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
	}

	var out []*requestlog.Entry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearRequests clears the request journal.
func (c *Client) ClearRequests(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/requests", nil, http.StatusNoContent, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return httputil.ParseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}
