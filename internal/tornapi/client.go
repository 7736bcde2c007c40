// Package tornapi provides the client for the Torn catalog service.
package tornapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/odinsson/tradeledger/internal/common"
	"github.com/odinsson/tradeledger/internal/model"
	"github.com/odinsson/tradeledger/internal/service"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.torn.com"

// Torn API error code for a rejected key.
const errCodeIncorrectKey = 2

// Client implements the service.CatalogService interface.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	retryOpts  service.RetryOptions
}

// NewClient creates a catalog service client. An empty baseURL selects
// the production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     slog.Default().With("component", "tornapi"),
		baseURL:    baseURL,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

type rawItem struct {
	Image json.RawMessage `json:"image"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	ID    int             `json:"id"`
}

type itemsResponse struct {
	Error *apiError          `json:"error"`
	Items map[string]rawItem `json:"items"`
}

type basicResponse struct {
	Error    *apiError `json:"error"`
	Name     string    `json:"name"`
	PlayerID int64     `json:"player_id"`
}

// FetchCatalog fetches the full item catalog. A rejected credential is
// surfaced as common.ErrCredentialRejected and is never auto-retried.
func (c *Client) FetchCatalog(ctx context.Context, apiKey string) (map[int]model.CatalogEntry, error) {
	endpoint := fmt.Sprintf("%s/v2/torn?selections=items&key=%s", c.baseURL, url.QueryEscape(apiKey))

	var resp itemsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, apiErrorToErr(resp.Error)
	}
	if resp.Items == nil {
		return nil, fmt.Errorf("%w: missing items payload", common.ErrTransientFetch)
	}

	catalog := make(map[int]model.CatalogEntry, len(resp.Items))
	for idStr, item := range resp.Items {
		id := item.ID
		if id <= 0 {
			parsed, err := strconv.Atoi(idStr)
			if err != nil || parsed <= 0 {
				continue
			}
			id = parsed
		}
		if item.Name == "" {
			continue
		}
		catalog[id] = model.CatalogEntry{
			ID:       id,
			Name:     item.Name,
			Category: model.GuessCategory(item.Type),
			ImageURL: pickImageURL(item.Image),
		}
	}

	c.logger.Info("Fetched catalog", "items", len(catalog))
	return catalog, nil
}

// FetchSelf fetches the local user's id and name.
func (c *Client) FetchSelf(ctx context.Context, apiKey string) (model.Counterparty, error) {
	endpoint := fmt.Sprintf("%s/user/?selections=basic&key=%s", c.baseURL, url.QueryEscape(apiKey))

	var resp basicResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return model.Counterparty{}, err
	}
	if resp.Error != nil {
		return model.Counterparty{}, apiErrorToErr(resp.Error)
	}
	if resp.PlayerID == 0 || resp.Name == "" {
		return model.Counterparty{}, fmt.Errorf("%w: missing player_id/name", common.ErrTransientFetch)
	}
	return model.Counterparty{ID: resp.PlayerID, Name: resp.Name}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrTransientFetch, err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading response: %v", common.ErrTransientFetch, err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: HTTP %d", common.ErrTransientFetch, resp.StatusCode)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", common.ErrTransientFetch, err)
		}
		return nil
	}
	return common.WithRetry(ctx, operation, c.retryOpts)
}

func apiErrorToErr(e *apiError) error {
	if e.Code == errCodeIncorrectKey {
		return fmt.Errorf("%w: %s", common.ErrCredentialRejected, e.Error)
	}
	return fmt.Errorf("%w: api error %d: %s", common.ErrTransientFetch, e.Code, e.Error)
}

// pickImageURL extracts an image reference that may arrive as a plain
// string or as an object of size variants.
func pickImageURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	for _, k := range []string{"large", "full", "preview", "medium", "small", "thumbnail"} {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
