package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Drug", CategoryDrug},
		{"drug", CategoryDrug},
		{"Energy Drink", CategoryEnergyDrink},
		{"Primary weapon", CategoryPrimary},
		{"plushie toy", CategoryPlushie},
		{"", CategoryOther},
		{"Mystery Box", CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GuessCategory(tt.in), "input %q", tt.in)
	}
}

func TestPriceRecordSanitize(t *testing.T) {
	rec := PriceRecord{
		Listings: []Listing{
			{PlayerName: "a", Price: 900, Quantity: 2, Updated: 10},
			{PlayerName: "zero-price", Price: 0, Quantity: 5},
			{PlayerName: "zero-qty", Price: 500, Quantity: 0},
			{PlayerName: "b", Price: 800, Quantity: 1, Updated: 20},
			{PlayerName: "negative", Price: -5, Quantity: 3},
			{PlayerName: "c", Price: 800, Quantity: 4, Updated: 5},
		},
		MarketPrice:   math.NaN(),
		BazaarAverage: -10,
	}
	rec.Sanitize()

	// Junk listings are dropped, survivors sorted by price ascending with
	// larger stacks first on ties.
	require.Len(t, rec.Listings, 3)
	assert.Equal(t, "c", rec.Listings[0].PlayerName)
	assert.Equal(t, "b", rec.Listings[1].PlayerName)
	assert.Equal(t, "a", rec.Listings[2].PlayerName)

	// Non-finite and negative figures are coerced to the unresolved zero.
	assert.Equal(t, float64(0), rec.MarketPrice)
	assert.Equal(t, float64(0), rec.BazaarAverage)

	assert.Equal(t, float64(800), rec.LowestListing())
}

func TestPriceRecordSanitizeTruncates(t *testing.T) {
	rec := PriceRecord{}
	for i := 0; i < MaxListings+10; i++ {
		rec.Listings = append(rec.Listings, Listing{Price: float64(1000 + i), Quantity: 1})
	}
	rec.Sanitize()
	assert.Len(t, rec.Listings, MaxListings)
	assert.Equal(t, float64(1000), rec.Listings[0].Price)
}

func TestLowestListingEmpty(t *testing.T) {
	rec := PriceRecord{}
	assert.Equal(t, float64(0), rec.LowestListing())
}

func TestBuyPriceFor(t *testing.T) {
	entry := PriceListEntry{BuyPrice: 100, BulkThreshold: 40, BulkBuyPrice: 80}

	// At or past the threshold the bulk price applies.
	assert.Equal(t, float64(80), entry.BuyPriceFor(50))
	assert.Equal(t, float64(80), entry.BuyPriceFor(40))
	assert.Equal(t, float64(100), entry.BuyPriceFor(39))

	// No bulk tier configured.
	flat := PriceListEntry{BuyPrice: 100}
	assert.Equal(t, float64(100), flat.BuyPriceFor(1000))

	// Nothing configured resolves to zero.
	assert.Equal(t, float64(0), PriceListEntry{}.BuyPriceFor(10))
}
