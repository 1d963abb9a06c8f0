package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/card-catalog/internal/cards/scryfall"
)

// DefaultMyPriceMultiplier is the discount applied to the market price when
// the collection has no explicit price.
const DefaultMyPriceMultiplier = 0.85

// ResolvePrice picks a single USD price for a printing:
//
//  1. no USD prices at all yields 0
//  2. the price for the requested finish, when present
//  3. otherwise the first present of usd, usd_foil, usd_etched
//  4. a promo whose chosen price equals usd takes usd_foil instead
//  5. the chosen value is parsed; failure yields 0
func ResolvePrice(prices scryfall.Prices, finish Finish, promo bool) float64 {
	if !prices.HasUSD() {
		return 0
	}

	var price *string
	switch finish {
	case FinishEtched:
		price = prices.USDEtched
	case FinishFoil:
		price = prices.USDFoil
	default:
		price = prices.USD
	}

	if price == nil {
		for _, p := range []*string{prices.USD, prices.USDFoil, prices.USDEtched} {
			if p != nil {
				price = p
				break
			}
		}
	}

	if promo && prices.USDFoil != nil && prices.USD != nil && *price == *prices.USD {
		price = prices.USDFoil
	}

	return parsePrice(price)
}

func parsePrice(s *string) float64 {
	if s == nil {
		return 0
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// MyPrice is market × multiplier rounded half away from zero to cents.
func MyPrice(market, multiplier float64) float64 {
	return decimal.NewFromFloat(market).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(2).
		InexactFloat64()
}
