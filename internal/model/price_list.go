package model

// PriceListEntry is one row of the user's configured buy prices. Zero
// values mean "unset": bulk pricing only applies when both BulkThreshold
// and BulkBuyPrice are positive.
type PriceListEntry struct {
	Name          string  `json:"name"`
	ItemID        int     `json:"itemId"`
	BuyPrice      float64 `json:"buyPrice"`
	BulkThreshold float64 `json:"bulkThreshold"`
	BulkBuyPrice  float64 `json:"bulkBuyPrice"`
	MarketValue   float64 `json:"marketValue"`
}

// BuyPriceFor returns the per-unit buy price for the given quantity,
// preferring the bulk price once the quantity meets the threshold.
// Returns 0 when the entry carries no usable price.
func (e PriceListEntry) BuyPriceFor(quantity int) float64 {
	if e.BulkThreshold > 0 && e.BulkBuyPrice > 0 && float64(quantity) >= e.BulkThreshold {
		return e.BulkBuyPrice
	}
	if e.BuyPrice > 0 {
		return e.BuyPrice
	}
	return 0
}
