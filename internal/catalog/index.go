package catalog

import (
	"strings"

	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
)

// Key builds the composite lookup key "{set}:{collectorNumber}:{lang}",
// lowercased. collectorNumber is used as given.
func Key(set, collectorNumber, lang string) string {
	return strings.ToLower(set + ":" + collectorNumber + ":" + lang)
}

// Index maps composite keys to reference records.
type Index struct {
	byKey   map[string]*scryfall.Card
	records int
	skipped int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byKey: make(map[string]*scryfall.Card)}
}

// BuildIndex indexes cards in one pass.
func BuildIndex(cards []*scryfall.Card) *Index {
	ix := NewIndex()
	for _, c := range cards {
		ix.Add(c)
	}
	return ix
}

// Add indexes a single record. Records without a set or collector number are
// skipped. The normalized key is last-write-wins; the raw marker-bearing key
// is only inserted when free.
func (ix *Index) Add(c *scryfall.Card) {
	if c == nil || c.SetCode == "" || c.CollectorNumber == "" {
		ix.skipped++
		return
	}
	ix.records++

	normalized := NormalizeCollectorNumber(c.CollectorNumber)
	ix.byKey[Key(c.SetCode, normalized, c.Lang)] = c

	raw := RawCollectorNumber(c.CollectorNumber)
	if raw != normalized && HasMarker(raw) {
		rawKey := Key(c.SetCode, raw, c.Lang)
		if _, taken := ix.byKey[rawKey]; !taken {
			ix.byKey[rawKey] = c
		}
	}
}

// Lookup returns the record stored under key.
func (ix *Index) Lookup(key string) (*scryfall.Card, bool) {
	c, ok := ix.byKey[key]
	return c, ok
}

// Len returns the number of distinct keys.
func (ix *Index) Len() int { return len(ix.byKey) }

// Records returns the number of records indexed.
func (ix *Index) Records() int { return ix.records }

// Skipped returns the number of records rejected for missing set or
// collector number.
func (ix *Index) Skipped() int { return ix.skipped }
