// Package weaver provides the client for the pricing/marketplace service.
package weaver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odinsson/tradeledger/internal/common"
	"github.com/odinsson/tradeledger/internal/model"
	"github.com/odinsson/tradeledger/internal/service"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://weav3r.dev/api"

// Client implements the service.PricingService interface. Upstream field
// names vary between snake_case and camelCase across deployments, so all
// payloads go through alias-tolerant coercion.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	retryOpts  service.RetryOptions
}

// NewClient creates a pricing service client. An empty baseURL selects
// the production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 25 * time.Second},
		logger:     slog.Default().With("component", "weaver"),
		baseURL:    baseURL,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// FetchSnapshot fetches and normalizes one marketplace snapshot.
func (c *Client) FetchSnapshot(ctx context.Context, itemID int) (model.PriceRecord, error) {
	endpoint := fmt.Sprintf("%s/marketplace/%d", c.baseURL, itemID)

	var raw map[string]any
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return model.PriceRecord{}, err
	}

	record := model.PriceRecord{
		ItemID:        intField(raw, itemID, "item_id", "itemId"),
		MarketPrice:   numberField(raw, "market_price", "marketPrice", "market_value", "marketValue"),
		BazaarAverage: numberField(raw, "bazaar_average", "bazaarAverage"),
	}

	if listings, ok := raw["listings"].([]any); ok {
		for _, entry := range listings {
			l, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			record.Listings = append(record.Listings, model.Listing{
				PlayerID:   int64(numberField(l, "player_id", "playerId", "user_id", "userId")),
				PlayerName: strings.TrimSpace(stringField(l, "player_name", "playerName", "name")),
				Price:      numberField(l, "price", "cost_each", "costEach"),
				Quantity:   int(numberField(l, "quantity", "qty")),
				Updated:    int64(numberField(l, "updated", "last_update", "lastUpdate")),
			})
		}
	}

	record.Sanitize()
	return record, nil
}

// FetchPriceList fetches the user's configured buy prices.
func (c *Client) FetchPriceList(ctx context.Context, userID int64) ([]model.PriceListEntry, error) {
	endpoint := fmt.Sprintf("%s/pricelist/%d", c.baseURL, userID)

	var raw json.RawMessage
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	rows, err := priceListRows(raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.PriceListEntry, 0, len(rows))
	for _, row := range rows {
		itemID := intField(row, 0, "itemId", "itemID", "id")
		if itemID <= 0 {
			continue
		}
		name := stringField(row, "name")
		if name == "" {
			name = "Item " + strconv.Itoa(itemID)
		}
		out = append(out, model.PriceListEntry{
			ItemID:        itemID,
			Name:          name,
			BuyPrice:      numberField(row, "buyPrice", "fixedPrice", "price"),
			BulkThreshold: numberField(row, "bulkThreshold", "bulk_threshold", "bulkQty", "bulk_qty"),
			BulkBuyPrice:  numberField(row, "bulkBuyPrice", "bulk_buy_price", "bulkPrice", "bulk_price"),
			MarketValue:   numberField(row, "market_value", "marketValue", "market", "avg_market", "market_price", "marketPrice"),
		})
	}
	return out, nil
}

// SubmitReceipt submits a completed-trade receipt and returns the receipt
// URL when the service provides one.
func (c *Client) SubmitReceipt(ctx context.Context, userID int64, counterparty, sessionID string, items []service.ReceiptItem) (string, error) {
	endpoint := fmt.Sprintf("%s/pricelist/%d", c.baseURL, userID)

	body := map[string]any{
		"username":       counterparty,
		"tradeID":        sessionID,
		"includeMessage": true,
		"items":          items,
	}

	var resp map[string]any
	if err := c.postJSON(ctx, endpoint, body, &resp); err != nil {
		return "", err
	}
	return stringField(resp, "receiptURL", "receiptUrl"), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return c.do(req, out)
	}
	return common.WithRetry(ctx, operation, c.retryOpts)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.do(req, out)
	}
	return common.WithRetry(ctx, operation, c.retryOpts)
}

func (c *Client) do(req *http.Request, out any) error {
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
		msg := errorMessage(body)
		if msg == "" {
			msg = "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", common.ErrTransientFetch, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", common.ErrTransientFetch, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return strings.TrimSpace(string(body))
	}
	return stringField(m, "message", "error")
}

// priceListRows accepts either a bare array or an {items: [...]} wrapper.
func priceListRows(raw json.RawMessage) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var wrapper struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: malformed price list: %v", common.ErrTransientFetch, err)
	}
	return wrapper.Items, nil
}

func numberField(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := toNumber(v); ok {
				return n
			}
		}
	}
	return 0
}

func intField(m map[string]any, fallback int, keys ...string) int {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := toNumber(v); ok && n > 0 {
				return int(n)
			}
		}
	}
	return fallback
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
