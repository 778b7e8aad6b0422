package models

import (
	"time"

	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
)

// CachedProduct is one row of the durable catalog snapshot. Position keeps
// the order the snapshot was written in.
type CachedProduct struct {
	ID        string             `gorm:"column:id;primaryKey"`
	Position  int                `gorm:"column:position;not null;default:0;index"`
	Code      string             `gorm:"column:code;not null;default:''"`
	Name      string             `gorm:"column:name;not null"`
	Price     decimal.Decimal    `gorm:"column:price;type:numeric(14,2);not null"`
	Quantity  int                `gorm:"column:quantity;not null;default:0"`
	Images    []string           `gorm:"column:images;type:text;serializer:json"`
	Tiers     types.PricingTiers `gorm:"column:tiers;type:text;serializer:json"`
	UpdatedAt *time.Time         `gorm:"column:updated_at"`
}

func (CachedProduct) TableName() string {
	return "cached_products"
}
