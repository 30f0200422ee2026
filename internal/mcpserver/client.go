package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Accordo platform.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// AccordoClient is a pure HTTP client for the Accordo platform API.
type AccordoClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAccordoClient creates a new client for the Accordo platform.
func NewAccordoClient(cfg Config) *AccordoClient {
	return &AccordoClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute, // turns can wait on LLM replies
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *AccordoClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ListDeals lists deals, newest first.
func (c *AccordoClient) ListDeals(ctx context.Context, limit int, includeArchived bool) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if includeArchived {
		q.Set("archived", "true")
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/deals", q, nil)
}

// GetDeal returns a single deal by ID.
func (c *AccordoClient) GetDeal(ctx context.Context, dealID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/deals/"+dealID, nil, nil)
}

// CreateDeal creates a new deal.
func (c *AccordoClient) CreateDeal(ctx context.Context, name, vendorName, templateID string) (json.RawMessage, error) {
	body := map[string]string{"name": name}
	if vendorName != "" {
		body["vendorName"] = vendorName
	}
	if templateID != "" {
		body["templateId"] = templateID
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/deals", nil, body)
}

// StartConversation opens the negotiation with the agent's greeting.
func (c *AccordoClient) StartConversation(ctx context.Context, dealID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/deals/"+dealID+"/start", nil, nil)
}

// SendVendorMessage feeds one vendor message through the negotiation engine.
func (c *AccordoClient) SendVendorMessage(ctx context.Context, dealID, text string) (json.RawMessage, error) {
	body := map[string]string{"text": text}
	return c.doRequest(ctx, http.MethodPost, "/v1/deals/"+dealID+"/messages", nil, body)
}

// Simulate runs one scripted vendor turn against the deal.
func (c *AccordoClient) Simulate(ctx context.Context, dealID, scenario string) (json.RawMessage, error) {
	var body any
	if scenario != "" {
		body = map[string]string{"scenario": scenario}
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/deals/"+dealID+"/simulate", nil, body)
}

// ListMessages returns the deal transcript.
func (c *AccordoClient) ListMessages(ctx context.Context, dealID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/deals/"+dealID+"/messages", q, nil)
}

// GetExplainability returns the full decision breakdown for the latest turn.
func (c *AccordoClient) GetExplainability(ctx context.Context, dealID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/deals/"+dealID+"/explain", nil, nil)
}

// ListTemplates lists negotiation policy templates.
func (c *AccordoClient) ListTemplates(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/templates", nil, nil)
}
