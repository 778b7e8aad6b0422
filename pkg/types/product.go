package types

import (
	"time"

	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/shopspring/decimal"
)

// TierDiscount is the discount a named tier applies to the unit price.
type TierDiscount struct {
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// PricingTiers holds up to three named tiers. Absent tiers are omitted.
type PricingTiers map[enums.PricingTier]TierDiscount

// Has reports whether the product carries the given named tier.
func (p PricingTiers) Has(tier enums.PricingTier) bool {
	if !tier.IsValid() {
		return false
	}
	_, ok := p[tier]
	return ok
}

// Clone returns an independent copy.
func (p PricingTiers) Clone() PricingTiers {
	if p == nil {
		return nil
	}
	out := make(PricingTiers, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Product is the catalog view of a sellable item.
type Product struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Images    []string        `json:"images,omitempty"`
	Tiers     PricingTiers    `json:"pricingTiers,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so holders never share slices or maps.
func (p Product) Clone() Product {
	out := p
	if p.Images != nil {
		out.Images = append([]string(nil), p.Images...)
	}
	out.Tiers = p.Tiers.Clone()
	return out
}

// Customer is the optional party a sale is bound to.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}
