package catalog

import (
	"fmt"

	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
	"github.com/ramonehamilton/card-catalog/internal/collection"
)

// Match finds the reference record for a collection row. It tries the
// normalized key first and, when the raw collector number carries Marker,
// the raw key. key is always the normalized key, for reporting.
func (ix *Index) Match(e collection.Entry) (card *scryfall.Card, key string, ok bool) {
	lang := e.Language
	if lang == "" {
		lang = collection.DefaultLanguage
	}

	key = Key(e.SetCode, NormalizeCollectorNumber(e.CollectorNumber), lang)
	if card, ok = ix.Lookup(key); ok {
		return card, key, true
	}

	raw := RawCollectorNumber(e.CollectorNumber)
	if HasMarker(raw) {
		if card, ok = ix.Lookup(Key(e.SetCode, raw, lang)); ok {
			return card, key, true
		}
	}

	return nil, key, false
}

// UnmatchedReason is the reason recorded for a row with no reference record.
func UnmatchedReason(key string) string {
	return fmt.Sprintf("no scryfall match found for key: %s", key)
}
