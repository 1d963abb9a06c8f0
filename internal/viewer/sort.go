package viewer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ramonehamilton/card-catalog/internal/catalog"
)

// SortKey names a sort order.
type SortKey string

const (
	SortPriceDesc    SortKey = "price_desc"
	SortPriceAsc     SortKey = "price_asc"
	SortNameAsc      SortKey = "name_asc"
	SortNameDesc     SortKey = "name_desc"
	SortCMCAsc       SortKey = "cmc_asc"
	SortCMCDesc      SortKey = "cmc_desc"
	SortRarityAsc    SortKey = "rarity_asc"
	SortRarityDesc   SortKey = "rarity_desc"
	SortSetAsc       SortKey = "set_asc"
	SortQuantityAsc  SortKey = "quantity_asc"
	SortQuantityDesc SortKey = "quantity_desc"

	DefaultSortKey = SortPriceDesc
)

// SortKeys lists every supported key.
var SortKeys = []SortKey{
	SortPriceDesc, SortPriceAsc,
	SortNameAsc, SortNameDesc,
	SortCMCAsc, SortCMCDesc,
	SortRarityAsc, SortRarityDesc,
	SortSetAsc,
	SortQuantityAsc, SortQuantityDesc,
}

// ParseSortKey validates s. An empty string yields DefaultSortKey.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSortKey, nil
	}
	if k := SortKey(s); slices.Contains(SortKeys, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

var rarityRanks = map[string]int{
	"common":   1,
	"uncommon": 2,
	"rare":     3,
	"mythic":   4,
}

// RarityRank orders rarities from common to mythic. Anything else ranks 99.
func RarityRank(rarity string) int {
	if r, ok := rarityRanks[strings.ToLower(rarity)]; ok {
		return r
	}
	return 99
}

// collectorNumberValue returns the first run of digits in cn. Numbers
// without digits sort after every numbered one.
func collectorNumberValue(cn string) int {
	start := strings.IndexFunc(cn, isDigit)
	if start < 0 {
		return math.MaxInt
	}
	end := start
	for end < len(cn) && isDigit(rune(cn[end])) {
		end++
	}
	n, err := strconv.Atoi(cn[start:end])
	if err != nil {
		return math.MaxInt
	}
	return n
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Sort orders cards in place. Ties keep their relative order. An unknown key
// leaves the slice untouched.
func Sort(cards []*catalog.Card, key SortKey) {
	cmpFn := comparator(key)
	if cmpFn == nil {
		return
	}
	slices.SortStableFunc(cards, cmpFn)
}

func comparator(key SortKey) func(a, b *catalog.Card) int {
	// A collator is not safe for concurrent use; each sort gets its own.
	col := collate.New(language.English, collate.Loose)
	byName := func(a, b *catalog.Card) int { return col.CompareString(a.Name, b.Name) }

	switch key {
	case SortPriceDesc:
		return func(a, b *catalog.Card) int { return cmp.Compare(b.EffectivePrice(), a.EffectivePrice()) }
	case SortPriceAsc:
		return func(a, b *catalog.Card) int { return cmp.Compare(a.EffectivePrice(), b.EffectivePrice()) }
	case SortNameAsc:
		return byName
	case SortNameDesc:
		return func(a, b *catalog.Card) int { return byName(b, a) }
	case SortCMCAsc:
		return func(a, b *catalog.Card) int { return cmp.Compare(a.CMC, b.CMC) }
	case SortCMCDesc:
		return func(a, b *catalog.Card) int { return cmp.Compare(b.CMC, a.CMC) }
	case SortRarityAsc:
		return func(a, b *catalog.Card) int { return cmp.Compare(RarityRank(a.Rarity), RarityRank(b.Rarity)) }
	case SortRarityDesc:
		return func(a, b *catalog.Card) int { return cmp.Compare(RarityRank(b.Rarity), RarityRank(a.Rarity)) }
	case SortSetAsc:
		return func(a, b *catalog.Card) int {
			return cmp.Or(
				strings.Compare(strings.ToLower(a.Set), strings.ToLower(b.Set)),
				cmp.Compare(collectorNumberValue(a.CollectorNumber), collectorNumberValue(b.CollectorNumber)),
				col.CompareString(a.CollectorNumber, b.CollectorNumber),
				byName(a, b),
			)
		}
	case SortQuantityAsc:
		return func(a, b *catalog.Card) int { return cmp.Compare(a.CurrentQuantity, b.CurrentQuantity) }
	case SortQuantityDesc:
		return func(a, b *catalog.Card) int { return cmp.Compare(b.CurrentQuantity, a.CurrentQuantity) }
	default:
		return nil
	}
}
