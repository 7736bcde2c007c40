// Package model defines the core domain types shared across the application.
package model

// CatalogEntry describes one item from the catalog service. Entries are
// immutable once the catalog index is built.
type CatalogEntry struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	ImageURL string   `json:"imageUrl"`
	ID       int      `json:"id"`
}

// LedgerLine is one reconciled row of a trade ledger. Name keeps the
// original display form of the item name; Quantity is always positive.
type LedgerLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Counterparty identifies the other actor in a trading session.
type Counterparty struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}
