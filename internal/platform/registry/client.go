// Package registry is the REST client for the marker registry, the system of
// record for marker accounts: escrow custody accounts and collateral receipt
// tokens. Money-moving operations snapshot marker state through this client
// immediately before deciding, so authorization checks never act on stale
// grants.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/strandfi/facilityd/internal/domain"
)

// Client is the REST client for the marker registry API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new registry client.
//
// baseURL is the API root, e.g. "http://localhost:1317". apiKey may be empty
// for unauthenticated registries.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// markerPayload is the registry's wire representation of a marker account.
type markerPayload struct {
	Address       string `json:"address"`
	Denom         string `json:"denom"`
	Supply        uint64 `json:"supply,string"`
	AccessControl []struct {
		Address     string   `json:"address"`
		Permissions []string `json:"permissions"`
	} `json:"access_control"`
}

func (p markerPayload) toDomain() domain.MarkerAccount {
	m := domain.MarkerAccount{
		Address: p.Address,
		Denom:   p.Denom,
		Supply:  p.Supply,
	}
	for _, ac := range p.AccessControl {
		grant := domain.AccessGrant{Address: ac.Address}
		for _, perm := range ac.Permissions {
			grant.Permissions = append(grant.Permissions, domain.MarkerPermission(perm))
		}
		m.Grants = append(m.Grants, grant)
	}
	return m
}

// MarkerByAddress returns the marker account holding the given address.
func (c *Client) MarkerByAddress(ctx context.Context, address string) (domain.MarkerAccount, error) {
	path := fmt.Sprintf("/v1/markers/address/%s", url.PathEscape(address))

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return domain.MarkerAccount{}, fmt.Errorf("registry: marker by address %s: %w", address, err)
	}

	var resp struct {
		Marker markerPayload `json:"marker"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.MarkerAccount{}, fmt.Errorf("registry: decode marker: %w", err)
	}
	return resp.Marker.toDomain(), nil
}

// MarkerByDenom returns the marker account backing the given denom.
func (c *Client) MarkerByDenom(ctx context.Context, denom string) (domain.MarkerAccount, error) {
	path := fmt.Sprintf("/v1/markers/%s", url.PathEscape(denom))

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return domain.MarkerAccount{}, fmt.Errorf("registry: marker by denom %s: %w", denom, err)
	}

	var resp struct {
		Marker markerPayload `json:"marker"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.MarkerAccount{}, fmt.Errorf("registry: decode marker: %w", err)
	}
	return resp.Marker.toDomain(), nil
}

// doRequest builds, sends, and reads a GET request against the registry API.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrUnauthorized)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}

// Compile-time interface check.
var _ domain.MarkerOracle = (*Client)(nil)
