// Package service defines the interfaces for the external collaborators
// the core depends on: the trade log source, the catalog and pricing
// services, and the durable key-value store.
package service

import (
	"context"
	"time"

	"github.com/odinsson/tradeledger/internal/model"
)

// Entry is one ordered entry of a trade log. Text carries the cleaned
// payload with any after-the-fact decorations already stripped; ActorID
// is zero when the entry carries no actor reference.
type Entry struct {
	ID        string
	Text      string
	ActorName string
	ActorID   int64
}

// LogSource is a readable tree of ordered trade-log entries. The host may
// replace the underlying log wholesale at any time; Generation changes
// whenever that happens so watchers know to rebuild from scratch.
type LogSource interface {
	// Entries returns the current entries in document order.
	Entries() []Entry
	// Generation identifies the underlying log object. A new value means
	// the previous log was replaced, not mutated.
	Generation() int64
	// SessionID returns the explicit session identifier, or "" when the
	// host exposes none.
	SessionID() string
	// OnMutation registers a callback invoked on structural changes to the
	// log subtree. Delivery is at-least-once: the callback may fire zero,
	// one, or many times for the same underlying change.
	OnMutation(fn func())
}

// Store is a flat, process-wide durable key-value store. Get returns
// common.ErrNotFound when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CatalogService fetches the item catalog and the local user's identity.
type CatalogService interface {
	FetchCatalog(ctx context.Context, apiKey string) (map[int]model.CatalogEntry, error)
	FetchSelf(ctx context.Context, apiKey string) (model.Counterparty, error)
}

// ReceiptItem is one line of a submitted trade receipt.
type ReceiptItem struct {
	ItemID   int `json:"itemID"`
	Quantity int `json:"quantity"`
}

// PricingService fetches marketplace snapshots and the user's price list,
// and submits completed-trade receipts.
type PricingService interface {
	FetchSnapshot(ctx context.Context, itemID int) (model.PriceRecord, error)
	FetchPriceList(ctx context.Context, userID int64) ([]model.PriceListEntry, error)
	SubmitReceipt(ctx context.Context, userID int64, counterparty, sessionID string, items []ReceiptItem) (string, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
