package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odinsson/tradeledger/internal/model"
)

func line(name string, qty int) model.LedgerLine {
	return model.LedgerLine{Name: name, Quantity: qty}
}

func TestComputeQuoteBulkPricing(t *testing.T) {
	entry := &model.PriceListEntry{BuyPrice: 100, BulkThreshold: 40, BulkBuyPrice: 80}

	q := ComputeQuote(line("Xanax", 50), 206, model.CategoryDrug, entry, nil, ProfitModeMarket, false)
	assert.Equal(t, int64(80), q.BuyPrice)
	assert.Equal(t, int64(4000), q.BuyTotal)

	q = ComputeQuote(line("Xanax", 39), 206, model.CategoryDrug, entry, nil, ProfitModeMarket, false)
	assert.Equal(t, int64(100), q.BuyPrice)
	assert.Equal(t, int64(3900), q.BuyTotal)
}

func TestComputeQuoteListingFallback(t *testing.T) {
	record := &model.PriceRecord{
		Listings: []model.Listing{{Price: 1000, Quantity: 3}},
	}
	record.Sanitize()

	// No price list entry: buy falls back to 95% of the lowest listing.
	q := ComputeQuote(line("Xanax", 2), 206, model.CategoryDrug, nil, record, ProfitModeMarket, false)
	assert.Equal(t, int64(950), q.BuyPrice)
	assert.Equal(t, int64(1900), q.BuyTotal)
	assert.True(t, q.HasSnapshot)
	assert.Equal(t, float64(1000), q.BazaarLowest)
}

func TestComputeQuoteMarketFloor(t *testing.T) {
	record := &model.PriceRecord{MarketPrice: 1}

	// A market price at or below the floor is unresolved.
	q := ComputeQuote(line("Junk", 1), 1, model.CategoryOther, nil, record, ProfitModeMarket, false)
	assert.Equal(t, float64(0), q.MarketPrice)
	assert.False(t, q.HasProfit)
}

func TestComputeQuoteProfitModes(t *testing.T) {
	entry := &model.PriceListEntry{BuyPrice: 800}
	record := &model.PriceRecord{
		MarketPrice: 1000,
		Listings:    []model.Listing{{Price: 900, Quantity: 1}},
	}
	record.Sanitize()

	// Market mode: (1000 - 800) * 4.
	q := ComputeQuote(line("Xanax", 4), 206, model.CategoryDrug, entry, record, ProfitModeMarket, false)
	assert.True(t, q.HasProfit)
	assert.InDelta(t, 800, q.Profit, 0.001)

	// Market mode with the 5% fee: (950 - 800) * 4.
	q = ComputeQuote(line("Xanax", 4), 206, model.CategoryDrug, entry, record, ProfitModeMarket, true)
	assert.InDelta(t, 600, q.Profit, 0.001)

	// Bazaar mode uses the lowest listing and ignores the fee toggle:
	// (900 - 800) * 4.
	q = ComputeQuote(line("Xanax", 4), 206, model.CategoryDrug, entry, record, ProfitModeBazaar, true)
	assert.InDelta(t, 400, q.Profit, 0.001)
}

func TestComputeQuoteUnresolved(t *testing.T) {
	q := ComputeQuote(line("Mystery", 3), 0, model.CategoryOther, nil, nil, ProfitModeMarket, false)

	assert.Equal(t, int64(0), q.BuyPrice)
	assert.Equal(t, int64(0), q.BuyTotal)
	assert.Equal(t, float64(0), q.MarketPrice)
	assert.False(t, q.HasProfit)
	assert.False(t, q.HasSnapshot)
}

func TestComputeQuoteNegativeProfit(t *testing.T) {
	entry := &model.PriceListEntry{BuyPrice: 1200}
	record := &model.PriceRecord{MarketPrice: 1000}

	q := ComputeQuote(line("Xanax", 2), 206, model.CategoryDrug, entry, record, ProfitModeMarket, false)
	assert.True(t, q.HasProfit)
	assert.InDelta(t, -400, q.Profit, 0.001)
}

func TestTotals(t *testing.T) {
	quotes := []Quote{
		{BuyTotal: 1000, Profit: 200, HasProfit: true},
		{BuyTotal: 500},
		{BuyTotal: 0, Profit: -50, HasProfit: true},
	}
	buy, profit, known := Totals(quotes)
	assert.Equal(t, int64(1500), buy)
	assert.InDelta(t, 150, profit, 0.001)
	assert.True(t, known)

	_, _, known = Totals([]Quote{{BuyTotal: 10}})
	assert.False(t, known)
}
