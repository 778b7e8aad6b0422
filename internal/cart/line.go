package cart

import (
	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one product in the cart. Product is a copy taken when the line was
// created and is never touched by later catalog changes. StockLimit is the
// product's available quantity as of the most recent add.
//
// SelectedTier holds at most one named tier; PricingTierNone means base price.
// Every mutation goes through Engine, which only ever stores a tier the
// product carries, so the three tiers are mutually exclusive by construction.
type Line struct {
	Product      types.Product     `json:"product"`
	Quantity     int               `json:"quantity"`
	SelectedTier enums.PricingTier `json:"selectedTier"`
	StockLimit   int               `json:"stockLimit"`
}

// DiscountPercent is the percent of the selected tier, zero when none.
func (l Line) DiscountPercent() decimal.Decimal {
	if l.SelectedTier == enums.PricingTierNone {
		return decimal.Zero
	}
	tier, ok := l.Product.Tiers[l.SelectedTier]
	if !ok {
		return decimal.Zero
	}
	return tier.DiscountPercent
}

// UnitPrice is the base price from the snapshot.
func (l Line) UnitPrice() decimal.Decimal {
	return l.Product.Price
}

// EffectiveUnitPrice applies the selected tier discount. It never goes below zero.
func (l Line) EffectiveUnitPrice() decimal.Decimal {
	pct := l.DiscountPercent()
	if pct.IsZero() {
		return l.Product.Price
	}
	price := l.Product.Price.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred)))
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// Total is EffectiveUnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OriginalTotal is the line total before any tier discount.
func (l Line) OriginalTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) clone() Line {
	out := l
	out.Product = l.Product.Clone()
	return out
}
