package catalog

import (
	"strings"
	"time"

	"github.com/odinsson/tradeledger/internal/model"
)

// Index is the immutable lookup structure built from one catalog refresh.
// NameToID maps canonical keys to item ids; a 0 value marks an ambiguous
// key whose id must be recovered by the linear-scan fallback in Resolve.
type Index struct {
	NameToID  map[string]int             `json:"nameToId"`
	IDToEntry map[int]model.CatalogEntry `json:"idToMeta"`
	BuiltAt   time.Time                  `json:"builtAt"`
}

// NewIndex builds an index from the catalog service's item map. When two
// distinct ids normalize to the same key, the key is poisoned with a 0
// sentinel rather than favoring either id.
func NewIndex(items map[int]model.CatalogEntry, builtAt time.Time) *Index {
	idx := &Index{
		NameToID:  make(map[string]int, len(items)),
		IDToEntry: make(map[int]model.CatalogEntry, len(items)),
		BuiltAt:   builtAt,
	}
	for id, item := range items {
		if id <= 0 || item.Name == "" {
			continue
		}
		item.ID = id
		idx.IDToEntry[id] = item

		k := Normalize(item.Name)
		if existing, ok := idx.NameToID[k]; !ok {
			idx.NameToID[k] = id
		} else if existing != id {
			idx.NameToID[k] = 0 // ambiguous
		}
	}
	return idx
}

// Entry returns the catalog entry for id.
func (idx *Index) Entry(id int) (model.CatalogEntry, bool) {
	e, ok := idx.IDToEntry[id]
	return e, ok
}

// Len returns the number of catalog entries indexed.
func (idx *Index) Len() int {
	return len(idx.IDToEntry)
}

// Resolve maps a display name to a catalog id, or 0 when no entry
// matches. 0 means "no catalog entry", not an error. Resolution order:
// exact canonical match (verified against the matched entry's own name),
// linear scan over all entries, then one retry with a trailing numeric
// stack decoration stripped from the query.
func (idx *Index) Resolve(name string) int {
	k := Normalize(name)
	if id, ok := idx.NameToID[k]; ok && id > 0 {
		entry, found := idx.IDToEntry[id]
		if !found || entry.Name == "" || Normalize(entry.Name) == k {
			return id
		}
		// The primary index hit disagrees with the entry's own canonical
		// name; fall through to the scan.
	}

	for id, entry := range idx.IDToEntry {
		if Normalize(entry.Name) == k {
			return id
		}
	}

	stripped := strings.TrimSpace(trailingNumber.ReplaceAllString(name, ""))
	if stripped != "" && stripped != strings.TrimSpace(name) {
		if id := idx.Resolve(stripped); id > 0 {
			return id
		}
	}
	return 0
}
