package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/odinsson/tradeledger/internal/catalog"
	"github.com/odinsson/tradeledger/internal/model"
)

// Ledger is the reconciled mapping of canonical item key to current
// quantity. Quantities are always positive: a line whose running quantity
// reaches zero or below is deleted outright.
type Ledger struct {
	lines map[string]model.LedgerLine
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{lines: make(map[string]model.LedgerLine)}
}

// Apply folds a signed quantity delta into the line for name. The display
// name retained for a key is whichever name was first seen for it.
func (l *Ledger) Apply(name string, delta int) {
	key := catalog.Normalize(name)
	if key == "" {
		return
	}
	prev, ok := l.lines[key]
	next := delta
	if ok {
		next += prev.Quantity
	}
	if next <= 0 {
		delete(l.lines, key)
		return
	}
	display := name
	if ok {
		display = prev.Name
	}
	l.lines[key] = model.LedgerLine{Name: display, Quantity: next}
}

// Get returns the line stored under name's canonical key.
func (l *Ledger) Get(name string) (model.LedgerLine, bool) {
	line, ok := l.lines[catalog.Normalize(name)]
	return line, ok
}

// Len returns the number of lines.
func (l *Ledger) Len() int {
	return len(l.lines)
}

// Lines returns a copy of the ledger keyed by canonical key.
func (l *Ledger) Lines() map[string]model.LedgerLine {
	out := make(map[string]model.LedgerLine, len(l.lines))
	for k, v := range l.lines {
		out[k] = v
	}
	return out
}

// Reset drops every line.
func (l *Ledger) Reset() {
	l.lines = make(map[string]model.LedgerLine)
}

// CartLine is the persisted form of one ledger line, stored as a
// [name, quantity] pair to match the per-session cart cache layout.
type CartLine struct {
	Name     string
	Quantity int
}

// MarshalJSON encodes the line as ["name", qty].
func (c CartLine) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Name, c.Quantity})
}

// UnmarshalJSON decodes ["name", qty] pairs.
func (c *CartLine) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) < 2 {
		return fmt.Errorf("cart line needs 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Name); err != nil {
		return err
	}
	var qty float64
	if err := json.Unmarshal(pair[1], &qty); err != nil {
		return err
	}
	c.Quantity = int(qty)
	return nil
}

// ToCart flattens the ledger into persistable cart lines, dropping
// anything with a blank name or non-positive quantity.
func (l *Ledger) ToCart() []CartLine {
	out := make([]CartLine, 0, len(l.lines))
	for _, v := range l.lines {
		name := strings.TrimSpace(v.Name)
		if name == "" || v.Quantity <= 0 {
			continue
		}
		out = append(out, CartLine{Name: name, Quantity: v.Quantity})
	}
	return out
}

// FromCart rebuilds a ledger from persisted cart lines.
func FromCart(cart []CartLine) *Ledger {
	l := NewLedger()
	for _, c := range cart {
		if strings.TrimSpace(c.Name) == "" || c.Quantity <= 0 {
			continue
		}
		l.Apply(c.Name, c.Quantity)
	}
	return l
}
