package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odinsson/tradeledger/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases and trims", in: "  Xanax  ", want: "xanax"},
		{name: "collapses whitespace runs", in: "Bottle  of\tBeer", want: "bottle of beer"},
		{name: "punctuation becomes space", in: "Ka-Bar Knife", want: "ka bar knife"},
		{name: "curly apostrophe straightened", in: "Hammer’s Head", want: "hammer s head"},
		{name: "straight apostrophe dropped", in: "Don's Armor", want: "don s armor"},
		{name: "digits survive", in: "MP5 Navy", want: "mp5 navy"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestStripStackSuffix(t *testing.T) {
	assert.Equal(t, "Xanax", StripStackSuffix("Xanax (206)", 206))
	assert.Equal(t, "Xanax", StripStackSuffix("Xanax [206]", 206))
	assert.Equal(t, "Xanax", StripStackSuffix("Xanax #206", 206))
	assert.Equal(t, "Xanax (99)", StripStackSuffix("Xanax (99)", 206), "mismatched id is left alone")
	assert.Equal(t, "Xanax", StripStackSuffix("Xanax", 206))
	assert.Equal(t, "", StripStackSuffix("  ", 206))
}

func testItems() map[int]model.CatalogEntry {
	return map[int]model.CatalogEntry{
		206: {Name: "Xanax", Category: model.CategoryDrug},
		180: {Name: "Bottle of Beer", Category: model.CategoryAlcohol},
		// Two entries whose names normalize identically.
		500: {Name: "Gold Ring", Category: model.CategoryJewelry},
		501: {Name: "Gold  Ring", Category: model.CategoryJewelry},
	}
}

func TestNewIndexAmbiguitySentinel(t *testing.T) {
	idx := NewIndex(testItems(), time.Now())

	require.Equal(t, 4, idx.Len())
	assert.Equal(t, 0, idx.NameToID["gold ring"], "colliding key must be poisoned, not overwritten")
	assert.Equal(t, 206, idx.NameToID["xanax"])
}

func TestResolve(t *testing.T) {
	idx := NewIndex(testItems(), time.Now())

	assert.Equal(t, 206, idx.Resolve("Xanax"))
	assert.Equal(t, 206, idx.Resolve("  xanax "))
	assert.Equal(t, 180, idx.Resolve("bottle of beer"))
	assert.Equal(t, 0, idx.Resolve("Plutonium"), "unknown name resolves to the zero sentinel")
}

func TestResolveStripsStackDecoration(t *testing.T) {
	idx := NewIndex(testItems(), time.Now())

	assert.Equal(t, 206, idx.Resolve("Xanax 3"))
	assert.Equal(t, 206, idx.Resolve("Xanax (3)"))
	assert.Equal(t, 180, idx.Resolve("Bottle of Beer [12]"))
}

func TestResolveAmbiguousStaysZero(t *testing.T) {
	idx := NewIndex(testItems(), time.Now())

	// Both gold rings normalize to the same key; the scan finds one of
	// them, which is acceptable, but the poisoned primary index must not
	// silently pick a winner on its own.
	got := idx.Resolve("Gold Ring")
	assert.Contains(t, []int{500, 501}, got)
}

func TestIndexEntryBackfillsID(t *testing.T) {
	idx := NewIndex(testItems(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	entry, ok := idx.Entry(206)
	require.True(t, ok)
	assert.Equal(t, "Xanax", entry.Name)
	assert.Equal(t, 206, entry.ID, "entry id is backfilled from the map key")
}
