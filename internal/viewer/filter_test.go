package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ramonehamilton/card-catalog/internal/catalog"
)

func ptr(f float64) *float64 { return &f }

// testCards returns a small, varied catalog.
func testCards() []*catalog.Card {
	return []*catalog.Card{
		{
			ID: "bolt", Name: "Lightning Bolt", Set: "lea", SetName: "Limited Edition Alpha",
			CollectorNumber: "161", Quantity: 1, CurrentQuantity: 1, Rarity: "common",
			TypeLine: "Instant", OracleText: "Lightning Bolt deals 3 damage to any target.",
			ManaCost: "{R}", CMC: 1, MarketPrice: 450, MyPrice: ptr(382.5),
			SearchableText: "lightning bolt limited edition alpha lea instant lightning bolt deals 3 damage to any target. common normal",
		},
		{
			ID: "goblin_foil", Name: "Goblin Guide", Set: "zen", SetName: "Zendikar",
			CollectorNumber: "126", Quantity: 2, CurrentQuantity: 2, Rarity: "rare",
			TypeLine: "Creature — Goblin Scout", OracleText: "Haste",
			ManaCost: "{R}", CMC: 1, MarketPrice: 12, MyPrice: ptr(10.2), IsFoil: true,
			SearchableText: "goblin guide zendikar zen creature — goblin scout haste rare foil",
		},
		{
			ID: "sol_etched", Name: "Sol Ring", Set: "cmr", SetName: "Commander Legends",
			CollectorNumber: "472", Quantity: 3, CurrentQuantity: 3, Rarity: "uncommon",
			TypeLine: "Artifact", OracleText: "{T}: Add {C}{C}.",
			ManaCost: "{1}", CMC: 1, MarketPrice: 5, MyPrice: ptr(4.25), IsEtched: true,
			SearchableText: "sol ring commander legends cmr artifact {t}: add {c}{c}. uncommon etched",
		},
		{
			ID: "emrakul", Name: "Emrakul, the Aeons Torn", Set: "roe", SetName: "Rise of the Eldrazi",
			CollectorNumber: "4", Quantity: 1, CurrentQuantity: 1, Rarity: "mythic",
			TypeLine: "Legendary Creature — Eldrazi", OracleText: "This spell can't be countered.",
			ManaCost: "{15}", CMC: 15, MarketPrice: 30, MyPrice: ptr(25.5), IsPromo: true,
			SearchableText: "emrakul, the aeons torn rise of the eldrazi roe legendary creature — eldrazi this spell can't be countered. mythic normal",
		},
		{
			ID: "treasure", Name: "Treasure", Set: "tsnc", SetName: "Streets of New Capenna Tokens",
			CollectorNumber: "14", Quantity: 5, CurrentQuantity: 5, Rarity: "common",
			TypeLine: "Token Artifact — Treasure", Layout: "token", IsToken: true,
			MarketPrice: 0.1, MyPrice: ptr(0.09),
			SearchableText: "treasure streets of new capenna tokens tsnc token artifact — treasure common normal",
		},
		{
			ID: "kiki", Name: "Kiki-Jiki, Mirror Breaker", Set: "chk", SetName: "Champions of Kamigawa",
			CollectorNumber: "175", Quantity: 1, CurrentQuantity: 1, Rarity: "rare",
			TypeLine: "Legendary Creature — Goblin Shaman", OracleText: "Haste",
			ManaCost: "{2}{R}{R}{R}", CMC: 5, MarketPrice: 40, MyPrice: ptr(34),
			SearchableText: "kiki-jiki, mirror breaker champions of kamigawa chk legendary creature — goblin shaman haste rare normal",
		},
	}
}

func ids(cards []*catalog.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestFilter_EmptyCriteriaReturnsCopy(t *testing.T) {
	cards := testCards()

	got := Filter(cards, Criteria{})

	assert.Equal(t, ids(cards), ids(got))
	got[0] = nil
	assert.NotNil(t, cards[0], "result must not alias the input")
	assert.True(t, Criteria{}.IsZero())
	assert.True(t, Criteria{SearchMode: SearchNameSet, Query: "  "}.IsZero())
}

func TestFilter_Query(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"searchable text", Criteria{Query: "HASTE"}, []string{"goblin_foil", "kiki"}},
		{"set name", Criteria{Query: "zendikar"}, []string{"goblin_foil"}},
		{"name and set only ignores oracle", Criteria{Query: "haste", SearchMode: SearchNameSet}, []string{}},
		{"name and set matches set code", Criteria{Query: "cmr", SearchMode: SearchNameSet}, []string{"sol_etched"}},
		{"type", Criteria{Type: "legendary"}, []string{"emrakul", "kiki"}},
		{"oracle", Criteria{Oracle: "countered"}, []string{"emrakul"}},
		{"rarity is exact", Criteria{Rarity: "Rare"}, []string{"goblin_foil", "kiki"}},
		{"mana cost containment", Criteria{ManaCost: "rr"}, []string{"kiki"}},
		{"mana cost with braces", Criteria{ManaCost: "{R}"}, []string{"bolt", "goblin_foil", "kiki"}},
		{"no match", Criteria{Query: "xyzzy"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(testCards(), tt.criteria)))
		})
	}
}

func TestFilter_FinishFlagsAreUnion(t *testing.T) {
	cards := testCards()

	assert.Equal(t, []string{"goblin_foil"}, ids(Filter(cards, Criteria{FoilOnly: true})))
	assert.Equal(t, []string{"goblin_foil", "sol_etched"}, ids(Filter(cards, Criteria{FoilOnly: true, EtchedOnly: true})))
	assert.Equal(t, []string{"goblin_foil", "sol_etched", "emrakul"},
		ids(Filter(cards, Criteria{FoilOnly: true, EtchedOnly: true, PromoOnly: true})))
}

func TestFilter_Flags(t *testing.T) {
	cards := testCards()
	cards[0].IsFavorite = true
	cards[5].IsFavorite = true
	cards[1].IsIgnored = true

	assert.Equal(t, []string{"bolt", "kiki"}, ids(Filter(cards, Criteria{FavoritesOnly: true})))
	assert.Equal(t, []string{"treasure"}, ids(Filter(cards, Criteria{TokenOnly: true})))

	hidden := Filter(cards, Criteria{HideIgnored: true})
	assert.NotContains(t, ids(hidden), "goblin_foil")
	assert.Len(t, hidden, len(cards)-1)

	assert.Contains(t, ids(Filter(cards, Criteria{})), "goblin_foil", "ignored cards stay without HideIgnored")
}

func TestFilter_Combined(t *testing.T) {
	cards := testCards()
	cards[5].IsIgnored = true

	got := Filter(cards, Criteria{Query: "goblin", HideIgnored: true})
	assert.Equal(t, []string{"goblin_foil"}, ids(got))
}

func TestFilter_QueryFallsBackWithoutSearchableText(t *testing.T) {
	cards := []*catalog.Card{{ID: "x", Name: "Counterspell", Set: "ice", SetName: "Ice Age"}}

	assert.Len(t, Filter(cards, Criteria{Query: "ice age"}), 1)
	assert.Len(t, Filter(cards, Criteria{Query: "counter"}), 1)
	assert.Empty(t, Filter(cards, Criteria{Query: "instant"}))
}

func TestNormalizeManaCost(t *testing.T) {
	assert.Equal(t, "2RR", normalizeManaCost("{2}{r}{R}"))
	assert.Equal(t, "W/U", normalizeManaCost(" {w/u} "))
	assert.Equal(t, "", normalizeManaCost(""))
}
