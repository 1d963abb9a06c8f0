// Package catalog builds the card catalog: it joins collection export rows to
// Scryfall reference records and derives prices, images and search text.
package catalog

import (
	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
)

// Finish is the physical printing variant of a card.
type Finish string

const (
	FinishNormal Finish = "normal"
	FinishFoil   Finish = "foil"
	FinishEtched Finish = "etched"
)

// ParseFinish maps a free-form finish value onto a Finish. Unknown values
// read as FinishNormal.
func ParseFinish(s string) Finish {
	switch Finish(lower(s)) {
	case FinishFoil:
		return FinishFoil
	case FinishEtched:
		return FinishEtched
	default:
		return FinishNormal
	}
}

// Card is one catalog entry: a matched collection row in a single finish.
type Card struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Set             string      `json:"set"`
	CollectorNumber string      `json:"collectorNumber"`
	Quantity        int         `json:"quantity"`
	IsFoil          bool        `json:"isFoil"`
	IsEtched        bool        `json:"isEtched"`
	IsPromo         bool        `json:"isPromo"`
	IsToken         bool        `json:"isToken"`
	MarketPrice     float64     `json:"marketPrice"`
	MyPrice         *float64    `json:"myPrice"`
	CMC             float64     `json:"cmc"`
	SearchableText  string      `json:"searchableText"`
	ImageURL        string      `json:"imageUrl,omitempty"`
	SetName         string      `json:"setName"`
	Rarity          string      `json:"rarity"`
	TypeLine        string      `json:"typeLine"`
	OracleText      string      `json:"oracleText"`
	ManaCost        string      `json:"manaCost"`
	Colors          []string    `json:"colors"`
	ColorIdentity   []string    `json:"colorIdentity"`
	Keywords        []string    `json:"keywords"`
	Layout          string      `json:"layout"`
	Scryfall        ScryfallRef `json:"scryfall"`

	// Runtime overlay, owned by the preference store. Never serialized.
	IsFavorite      bool `json:"-"`
	IsIgnored       bool `json:"-"`
	CurrentQuantity int  `json:"-"`
}

// ScryfallRef is the snapshot of reference data kept on each card.
type ScryfallRef struct {
	ID         string            `json:"id"`
	OracleID   string            `json:"oracle_id,omitempty"`
	Legalities map[string]string `json:"legalities"`
	Reprint    bool              `json:"reprint"`
	Variation  bool              `json:"variation"`
	Prices     scryfall.Prices   `json:"prices"`
}

// Finish returns the card's finish.
func (c *Card) Finish() Finish {
	switch {
	case c.IsEtched:
		return FinishEtched
	case c.IsFoil:
		return FinishFoil
	default:
		return FinishNormal
	}
}

// EffectivePrice is the user's price, falling back to the market price.
func (c *Card) EffectivePrice() float64 {
	if c.MyPrice != nil {
		return *c.MyPrice
	}
	return c.MarketPrice
}

// normalize applies the documented defaults for fields absent from a
// catalog file, so consumers never re-check them.
func (c *Card) normalize() {
	if c.Colors == nil {
		c.Colors = []string{}
	}
	if c.ColorIdentity == nil {
		c.ColorIdentity = []string{}
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.Scryfall.Legalities == nil {
		c.Scryfall.Legalities = map[string]string{}
	}
	if IsTokenLayout(c.Layout) {
		c.IsToken = true
	}
	if c.MyPrice == nil {
		p := c.MarketPrice
		c.MyPrice = &p
	}
	if c.Quantity < 0 {
		c.Quantity = 0
	}
	if c.SearchableText == "" {
		c.SearchableText = ComposeSearchText(c.Name, c.SetName, c.Set, c.TypeLine, c.OracleText, c.Rarity, string(c.Finish()))
	}
	c.CurrentQuantity = c.Quantity
}

// IsTokenLayout reports whether a Scryfall layout denotes a token.
func IsTokenLayout(layout string) bool {
	switch lower(layout) {
	case "token", "double_faced_token":
		return true
	default:
		return false
	}
}
