// Package viewer is the engine behind the catalog viewer: filtering, sorting
// and paging the card working set, plus the session that ties them to the
// user's preferences.
package viewer

import (
	"strings"

	"github.com/ramonehamilton/card-catalog/internal/catalog"
)

// SearchMode selects which fields the free-text query runs against.
type SearchMode string

const (
	// SearchAll matches the query against the card's searchable text.
	SearchAll SearchMode = "all"
	// SearchNameSet matches the query against the name and set code only.
	SearchNameSet SearchMode = "name_set"
)

// Criteria is the set of active filters. The zero value matches every card.
type Criteria struct {
	Query      string     `json:"query"`
	SearchMode SearchMode `json:"searchMode"`
	Type       string     `json:"type"`
	Oracle     string     `json:"oracle"`
	Rarity     string     `json:"rarity"`
	ManaCost   string     `json:"manaCost"`

	FoilOnly      bool `json:"foilOnly"`
	EtchedOnly    bool `json:"etchedOnly"`
	PromoOnly     bool `json:"promoOnly"`
	TokenOnly     bool `json:"tokenOnly"`
	FavoritesOnly bool `json:"favoritesOnly"`
	HideIgnored   bool `json:"hideIgnored"`
}

// IsZero reports whether no filter is active.
func (c Criteria) IsZero() bool {
	return c.compile().empty()
}

// matcher is Criteria with its text inputs normalized once per Filter call.
type matcher struct {
	query     string
	nameSet   bool
	typeLine  string
	oracle    string
	rarity    string
	manaCost  string
	finishes  bool
	foil      bool
	etched    bool
	promo     bool
	token     bool
	favorites bool
	hideIgn   bool
}

func (c Criteria) compile() matcher {
	return matcher{
		query:     strings.ToLower(strings.TrimSpace(c.Query)),
		nameSet:   c.SearchMode == SearchNameSet,
		typeLine:  strings.ToLower(strings.TrimSpace(c.Type)),
		oracle:    strings.ToLower(strings.TrimSpace(c.Oracle)),
		rarity:    strings.ToLower(strings.TrimSpace(c.Rarity)),
		manaCost:  normalizeManaCost(c.ManaCost),
		finishes:  c.FoilOnly || c.EtchedOnly || c.PromoOnly,
		foil:      c.FoilOnly,
		etched:    c.EtchedOnly,
		promo:     c.PromoOnly,
		token:     c.TokenOnly,
		favorites: c.FavoritesOnly,
		hideIgn:   c.HideIgnored,
	}
}

func (m matcher) empty() bool {
	return m.query == "" && m.typeLine == "" && m.oracle == "" && m.rarity == "" &&
		m.manaCost == "" && !m.finishes && !m.token && !m.favorites && !m.hideIgn
}

func (m matcher) match(c *catalog.Card) bool {
	// Flags first; they are cheaper than any substring scan.
	if m.hideIgn && c.IsIgnored {
		return false
	}
	if m.favorites && !c.IsFavorite {
		return false
	}
	if m.token && !c.IsToken {
		return false
	}
	if m.finishes && !(m.foil && c.IsFoil || m.etched && c.IsEtched || m.promo && c.IsPromo) {
		return false
	}
	if m.rarity != "" && strings.ToLower(c.Rarity) != m.rarity {
		return false
	}

	if m.query != "" && !m.matchQuery(c) {
		return false
	}
	if m.typeLine != "" && !strings.Contains(strings.ToLower(c.TypeLine), m.typeLine) {
		return false
	}
	if m.oracle != "" && !strings.Contains(strings.ToLower(c.OracleText), m.oracle) {
		return false
	}
	if m.manaCost != "" && !strings.Contains(normalizeManaCost(c.ManaCost), m.manaCost) {
		return false
	}
	return true
}

func (m matcher) matchQuery(c *catalog.Card) bool {
	if m.nameSet {
		return strings.Contains(strings.ToLower(c.Name), m.query) ||
			strings.Contains(strings.ToLower(c.Set), m.query)
	}
	if c.SearchableText != "" {
		return strings.Contains(c.SearchableText, m.query)
	}
	return strings.Contains(strings.ToLower(c.Name), m.query) ||
		strings.Contains(strings.ToLower(c.SetName), m.query) ||
		strings.Contains(strings.ToLower(c.Set), m.query)
}

// normalizeManaCost strips braces and whitespace and upper-cases the symbols,
// so "{2}{R}{R}" and "2rr" compare equal.
func normalizeManaCost(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '{', '}', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(s))
}

// Filter returns the cards matching c, preserving input order. The result is
// always a new slice.
func Filter(cards []*catalog.Card, c Criteria) []*catalog.Card {
	m := c.compile()
	out := make([]*catalog.Card, 0, len(cards))
	if m.empty() {
		return append(out, cards...)
	}

	for _, card := range cards {
		if m.match(card) {
			out = append(out, card)
		}
	}
	return out
}
