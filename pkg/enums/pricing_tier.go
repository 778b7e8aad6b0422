package enums

import "fmt"

// PricingTier names a discount level attached to a product. The zero value
// means no tier is selected.
type PricingTier string

const (
	PricingTierNone PricingTier = ""
	PricingTier1    PricingTier = "tier1"
	PricingTier2    PricingTier = "tier2"
	PricingTier3    PricingTier = "tier3"
)

var validPricingTiers = []PricingTier{
	PricingTier1,
	PricingTier2,
	PricingTier3,
}

// PricingTiers lists the named tiers in display order.
func PricingTiers() []PricingTier {
	out := make([]PricingTier, len(validPricingTiers))
	copy(out, validPricingTiers)
	return out
}

// String implements fmt.Stringer.
func (t PricingTier) String() string {
	if t == PricingTierNone {
		return "none"
	}
	return string(t)
}

// IsValid reports whether the value is one of tier1..tier3.
func (t PricingTier) IsValid() bool {
	for _, candidate := range validPricingTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePricingTier converts raw input into a PricingTier. Empty input and
// "none" both map to PricingTierNone.
func ParsePricingTier(value string) (PricingTier, error) {
	if value == "" || value == "none" {
		return PricingTierNone, nil
	}
	for _, candidate := range validPricingTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing tier %q", value)
}
