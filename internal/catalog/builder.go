package catalog

import (
	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
	"github.com/ramonehamilton/card-catalog/internal/collection"
	"github.com/ramonehamilton/card-catalog/internal/logger"
)

// Unmatched is a collection row with no reference record.
type Unmatched struct {
	Reason    string           `json:"reason"`
	SourceRow collection.Entry `json:"sourceRow"`
}

// Stats summarises a build run.
type Stats struct {
	Rows          int
	Matched       int
	Unmatched     int
	ZeroPrice     int
	MissingImage  int
	TotalQuantity int
	MarketValue   float64
	MyValue       float64
}

// Result is the output of Build.
type Result struct {
	Cards     []*Card
	Unmatched []Unmatched
	Stats     Stats
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// MyPriceMultiplier is applied to the market price when a row has no
	// explicit price. Zero means DefaultMyPriceMultiplier.
	MyPriceMultiplier float64
}

// Builder turns matched collection rows into catalog cards.
type Builder struct {
	options BuilderOptions
	log     *logger.Logger
}

// NewBuilder creates a Builder. A nil log discards output.
func NewBuilder(options BuilderOptions, log *logger.Logger) *Builder {
	if options.MyPriceMultiplier <= 0 {
		options.MyPriceMultiplier = DefaultMyPriceMultiplier
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{options: options, log: log}
}

// Build matches every entry against ix. Misses are collected, never fatal.
// The output preserves entry order.
func (b *Builder) Build(entries []collection.Entry, ix *Index) *Result {
	res := &Result{
		Cards:     make([]*Card, 0, len(entries)),
		Unmatched: []Unmatched{},
	}
	res.Stats.Rows = len(entries)

	for _, e := range entries {
		ref, key, ok := ix.Match(e)
		if !ok {
			b.log.Debug().
				Str("key", key).
				Str("name", e.Name).
				Int("line", e.Line).
				Msg("no reference match")
			res.Unmatched = append(res.Unmatched, Unmatched{
				Reason:    UnmatchedReason(key),
				SourceRow: e,
			})
			res.Stats.Unmatched++
			continue
		}

		card := b.Enrich(e, ref)
		res.Cards = append(res.Cards, card)

		res.Stats.Matched++
		res.Stats.TotalQuantity += card.Quantity
		res.Stats.MarketValue += card.MarketPrice * float64(card.Quantity)
		res.Stats.MyValue += card.EffectivePrice() * float64(card.Quantity)
		if card.MarketPrice == 0 {
			res.Stats.ZeroPrice++
		}
		if card.ImageURL == "" {
			res.Stats.MissingImage++
		}
	}

	return res
}

// Enrich derives a catalog card from a row and its reference record.
func (b *Builder) Enrich(e collection.Entry, ref *scryfall.Card) *Card {
	finish := ParseFinish(e.Finish)
	promo := e.Promo || ref.Promo

	market := ResolvePrice(ref.Prices, finish, promo)
	myPrice := MyPrice(market, b.options.MyPriceMultiplier)
	if e.MyPrice != nil {
		myPrice = *e.MyPrice
	}

	id := ref.ID
	switch finish {
	case FinishFoil:
		id += "_foil"
	case FinishEtched:
		id += "_etched"
	}

	card := &Card{
		ID:              id,
		Name:            e.Name,
		Set:             e.SetCode,
		CollectorNumber: e.CollectorNumber,
		Quantity:        e.Quantity,
		IsFoil:          finish == FinishFoil,
		IsEtched:        finish == FinishEtched,
		IsPromo:         promo,
		IsToken:         IsTokenLayout(ref.Layout),
		MarketPrice:     market,
		MyPrice:         &myPrice,
		CMC:             ref.CMC,
		SearchableText: ComposeSearchText(
			e.Name, ref.SetName, e.SetCode, ref.TypeLine, ref.OracleText, ref.Rarity, string(finish),
		),
		ImageURL:      ResolveImageURL(ref.ImageURIs, ref.CardFaces),
		SetName:       ref.SetName,
		Rarity:        ref.Rarity,
		TypeLine:      ref.TypeLine,
		OracleText:    ref.OracleText,
		ManaCost:      ref.ManaCost,
		Colors:        ref.Colors,
		ColorIdentity: ref.ColorIdentity,
		Keywords:      ref.Keywords,
		Layout:        ref.Layout,
		Scryfall: ScryfallRef{
			ID:         ref.ID,
			OracleID:   ref.OracleID,
			Legalities: ref.Legalities,
			Reprint:    ref.Reprint,
			Variation:  ref.Variation,
			Prices:     ref.Prices,
		},
	}
	card.normalize()

	return card
}
