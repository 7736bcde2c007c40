package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     Action
		wantOK   bool
	}{
		{
			name:   "single item added",
			text:   "2x Xanax added to the trade",
			want:   Action{Type: ActionAdded, Items: []Item{{Name: "Xanax", Quantity: 2}}},
			wantOK: true,
		},
		{
			name:   "single item removed",
			text:   "1x Xanax removed from the trade",
			want:   Action{Type: ActionRemoved, Items: []Item{{Name: "Xanax", Quantity: 1}}},
			wantOK: true,
		},
		{
			name: "multiple items in one action",
			text: "3x Bottle of Beer, 2x First Aid Kit added to the trade",
			want: Action{Type: ActionAdded, Items: []Item{
				{Name: "Bottle of Beer", Quantity: 3},
				{Name: "First Aid Kit", Quantity: 2},
			}},
			wantOK: true,
		},
		{
			name:   "remove-all of a stacked line",
			text:   "6x Xanax removed from the trade",
			want:   Action{Type: ActionRemoved, Items: []Item{{Name: "Xanax", Quantity: 6}}},
			wantOK: true,
		},
		{
			name:   "actor prefix before the verb",
			text:   "SomePlayer added 5x Xanax to the trade",
			want:   Action{Type: ActionAdded, Items: []Item{{Name: "Xanax", Quantity: 5}}},
			wantOK: true,
		},
		{
			name:   "actor prefix before the removal verb",
			text:   "SomePlayer removed 2x Xanax from the trade",
			want:   Action{Type: ActionRemoved, Items: []Item{{Name: "Xanax", Quantity: 2}}},
			wantOK: true,
		},
		{
			name:   "case insensitive",
			text:   "2X XANAX ADDED TO THE TRADE",
			want:   Action{Type: ActionAdded, Items: []Item{{Name: "XANAX", Quantity: 2}}},
			wantOK: true,
		},
		{
			name:   "unrelated chatter ignored",
			text:   "SomePlayer joined the conversation",
			wantOK: false,
		},
		{
			name:   "money line ignored",
			text:   "$1,000,000 added to the trade",
			wantOK: false,
		},
		{
			name:   "malformed fragment skipped",
			text:   "added Xanax to the trade",
			want:   Action{Type: ActionAdded},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAction(tt.text)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Items, got.Items)
		})
	}
}

func TestLedgerApplySequence(t *testing.T) {
	l := NewLedger()

	l.Apply("Xanax", 2)
	l.Apply("Xanax", -1)
	line, ok := l.Get("Xanax")
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)

	l.Apply("Xanax", 5)
	line, _ = l.Get("Xanax")
	assert.Equal(t, 6, line.Quantity)

	// Removing everything deletes the line instead of leaving a zero.
	l.Apply("Xanax", -6)
	_, ok = l.Get("Xanax")
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())

	// Over-removal never goes negative.
	l.Apply("Xanax", 1)
	l.Apply("Xanax", -10)
	_, ok = l.Get("Xanax")
	assert.False(t, ok)
}

func TestLedgerCanonicalKeyMergesVariants(t *testing.T) {
	l := NewLedger()

	l.Apply("Bottle of Beer", 1)
	l.Apply("bottle  of   beer", 2)

	require.Equal(t, 1, l.Len())
	line, ok := l.Get("BOTTLE OF BEER")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	// First-seen display name wins.
	assert.Equal(t, "Bottle of Beer", line.Name)
}

func TestCartRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Apply("Xanax", 6)
	l.Apply("Bottle of Beer", 3)

	cart := l.ToCart()
	require.Len(t, cart, 2)

	rebuilt := FromCart(cart)
	assert.Equal(t, l.Lines(), rebuilt.Lines())
}

func TestCartLineJSONLayout(t *testing.T) {
	line := CartLine{Name: "Xanax", Quantity: 6}
	raw, err := line.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["Xanax", 6]`, string(raw))

	var back CartLine
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.Equal(t, line, back)
}
