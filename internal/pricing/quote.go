// Package pricing implements the pricing orchestrator: it resolves ledger
// lines against the catalog, consults the tiered caches, schedules fetches
// for misses, and computes the buy/market/bazaar/profit figures per line.
package pricing

import (
	"math"

	"github.com/odinsson/tradeledger/internal/model"
)

// ProfitMode selects which figure the profit calculation is based on.
type ProfitMode string

// Profit modes.
const (
	ProfitModeMarket ProfitMode = "market"
	ProfitModeBazaar ProfitMode = "bazaar"
)

// marketFloor guards against degenerate zero/near-zero market prices from
// upstream: anything at or below it counts as unresolved.
const marketFloor = 1

// feeMultiplier is the flat 5% market fee applied when the toggle is on.
const feeMultiplier = 0.95

// discountMultiplier prices a fallback buy at 95% of the lowest listing.
const discountMultiplier = 0.95

// Quote is the computed pricing view of one ledger line. Zero-valued
// figures are unresolved and rendered distinctly; they are excluded from
// totals rather than treated as errors.
type Quote struct {
	Name         string
	Category     model.Category
	ItemID       int
	Quantity     int
	BuyPrice     int64
	BuyTotal     int64
	MarketPrice  float64
	BazaarLowest float64
	Profit       float64
	HasProfit    bool
	HasSnapshot  bool
}

// Totals sums the resolved figures across quotes. Unresolved lines are
// excluded from the sums rather than treated as zero contributions.
func Totals(quotes []Quote) (buyTotal int64, profitTotal float64, profitKnown bool) {
	for _, q := range quotes {
		buyTotal += q.BuyTotal
		if q.HasProfit {
			profitTotal += q.Profit
			profitKnown = true
		}
	}
	return buyTotal, profitTotal, profitKnown
}

// ComputeQuote derives the figures for one ledger line. entry and record
// may be nil when the price list or snapshot is unavailable.
func ComputeQuote(line model.LedgerLine, itemID int, category model.Category, entry *model.PriceListEntry, record *model.PriceRecord, mode ProfitMode, feeCut bool) Quote {
	q := Quote{
		Name:     line.Name,
		Category: category,
		ItemID:   itemID,
		Quantity: line.Quantity,
	}

	var bazaarLowest, marketPrice float64
	if record != nil {
		q.HasSnapshot = true
		bazaarLowest = record.LowestListing()
		if record.MarketPrice > marketFloor {
			marketPrice = record.MarketPrice
		}
	}
	q.BazaarLowest = bazaarLowest
	q.MarketPrice = marketPrice

	var buy int64
	if entry != nil {
		if p := entry.BuyPriceFor(line.Quantity); p > 0 {
			buy = int64(math.Round(p))
		}
	}
	if buy == 0 && bazaarLowest > 0 {
		discounted := int64(math.Round(bazaarLowest * discountMultiplier))
		if discounted > 0 {
			buy = discounted
		}
	}
	q.BuyPrice = buy
	if buy > 0 {
		q.BuyTotal = buy * int64(line.Quantity)
	}

	profitBase := marketPrice
	if mode == ProfitModeBazaar {
		profitBase = bazaarLowest
	} else if feeCut && profitBase > 0 {
		profitBase *= feeMultiplier
	}
	if profitBase > 0 && buy > 0 {
		q.Profit = (profitBase - float64(buy)) * float64(line.Quantity)
		q.HasProfit = true
	}

	return q
}
