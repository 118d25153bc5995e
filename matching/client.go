// Package matching is the thin client for the external property-match
// collaborator. Any failure is reported to the caller, which degrades
// to the no-match value proposition.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"estatenexy/models"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type matchRequest struct {
	TenantID uint           `json:"tenant_id"`
	Slots    models.SlotMap `json:"slots"`
}

type matchResponse struct {
	Properties []models.PropertySummary `json:"properties"`
}

func (c *Client) Match(ctx context.Context, tenantID uint, slots models.SlotMap) ([]models.PropertySummary, error) {
	body, err := json.Marshal(matchRequest{TenantID: tenantID, Slots: slots})
	if err != nil {
		return nil, fmt.Errorf("matching: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("matching: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matching: call service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matching: unexpected status %d", resp.StatusCode)
	}

	var out matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("matching: decode response: %w", err)
	}
	return out.Properties, nil
}
