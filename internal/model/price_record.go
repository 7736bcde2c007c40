package model

import (
	"math"
	"sort"
)

// MaxListings caps how many bazaar listings are retained per snapshot.
const MaxListings = 25

// Listing is a single bazaar listing inside a marketplace snapshot.
type Listing struct {
	PlayerName string  `json:"playerName"`
	PlayerID   int64   `json:"playerId"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Updated    int64   `json:"updated"`
}

// PriceRecord is the normalized shape of one externally fetched
// marketplace snapshot for a single catalog item.
type PriceRecord struct {
	Listings      []Listing `json:"listings"`
	ItemID        int       `json:"itemId"`
	MarketPrice   float64   `json:"marketPrice"`
	BazaarAverage float64   `json:"bazaarAverage"`
}

// Sanitize normalizes a record in place: non-finite or negative scalar
// fields are coerced to 0, listings without a positive price and quantity
// are dropped, and the remainder is sorted by price ascending, quantity
// descending, recency descending, then truncated to MaxListings.
func (r *PriceRecord) Sanitize() {
	r.MarketPrice = sanitizeNumber(r.MarketPrice)
	r.BazaarAverage = sanitizeNumber(r.BazaarAverage)
	if r.ItemID < 0 {
		r.ItemID = 0
	}

	kept := r.Listings[:0]
	for _, l := range r.Listings {
		l.Price = sanitizeNumber(l.Price)
		if l.Price <= 0 || l.Quantity <= 0 {
			continue
		}
		kept = append(kept, l)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Price != kept[j].Price {
			return kept[i].Price < kept[j].Price
		}
		if kept[i].Quantity != kept[j].Quantity {
			return kept[i].Quantity > kept[j].Quantity
		}
		return kept[i].Updated > kept[j].Updated
	})
	if len(kept) > MaxListings {
		kept = kept[:MaxListings]
	}
	r.Listings = kept
}

// LowestListing returns the minimum positive listing price, or 0 when the
// record has no usable listings.
func (r *PriceRecord) LowestListing() float64 {
	best := 0.0
	for _, l := range r.Listings {
		if l.Price <= 0 {
			continue
		}
		if best == 0 || l.Price < best {
			best = l.Price
		}
	}
	return best
}

func sanitizeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
