// Package receipt builds the data a printer or screen renders for a sale.
package receipt

import (
	"time"

	"github.com/angelmondragon/posterminal/internal/cart"
	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

type Line struct {
	ProductID          string            `json:"productId"`
	Code               string            `json:"code"`
	Name               string            `json:"name"`
	Quantity           int               `json:"quantity"`
	OriginalUnitPrice  decimal.Decimal   `json:"originalUnitPrice"`
	EffectiveUnitPrice decimal.Decimal   `json:"effectiveUnitPrice"`
	DiscountPercent    *decimal.Decimal  `json:"discountPercent,omitempty"`
	Tier               enums.PricingTier `json:"tier,omitempty"`
	Total              decimal.Decimal   `json:"total"`
}

type Payments struct {
	Cash   decimal.Decimal     `json:"cash"`
	Card   decimal.Decimal     `json:"card"`
	Paid   decimal.Decimal     `json:"paid"`
	Debt   decimal.Decimal     `json:"debt"`
	Change decimal.Decimal     `json:"change"`
	Method enums.PaymentMethod `json:"method"`
}

// Document is the receipt for one sale. It holds no behavior.
type Document struct {
	SaleKey          string          `json:"saleKey"`
	ReceiptNumber    string          `json:"receiptNumber,omitempty"`
	Pending          bool            `json:"pending"`
	IsReturn         bool            `json:"isReturn"`
	CreatedAt        time.Time       `json:"createdAt"`
	CustomerID       string          `json:"customerId,omitempty"`
	Customer         *types.Customer `json:"customer,omitempty"`
	Lines            []Line          `json:"lines"`
	OriginalSubtotal decimal.Decimal `json:"originalSubtotal"`
	DiscountTotal    decimal.Decimal `json:"discountTotal"`
	Total            decimal.Decimal `json:"total"`
	Payments         Payments        `json:"payments"`
}

// Compose builds the receipt for sale. lines are the cart lines the sale was
// finalized from; they supply original prices and tier detail. Items without
// a matching line are printed at their sale price with no discount.
func Compose(sale types.Sale, lines []cart.Line) Document {
	byProduct := make(map[string]cart.Line, len(lines))
	for _, l := range lines {
		byProduct[l.Product.ID] = l
	}

	doc := Document{
		SaleKey:       sale.IdempotencyKey,
		ReceiptNumber: sale.ReceiptNumber,
		Pending:       sale.SyncStatus != enums.SyncStatusSynced,
		IsReturn:      sale.IsReturn,
		CreatedAt:     sale.CreatedAt,
		Lines:         make([]Line, 0, len(sale.Items)),
		Total:         sale.Total,
		Payments: Payments{
			Cash:   sale.CashAmount,
			Card:   sale.CardAmount,
			Paid:   sale.PaidAmount,
			Debt:   sale.DebtAmount,
			Change: sale.Change(),
			Method: sale.PaymentMethod,
		},
	}
	if sale.CustomerID != nil {
		doc.CustomerID = *sale.CustomerID
	}

	original := decimal.Zero
	discounted := decimal.Zero
	for _, item := range sale.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		line := Line{
			ProductID:          item.ProductID,
			Code:               item.Code,
			Name:               item.Name,
			Quantity:           item.Quantity,
			OriginalUnitPrice:  item.UnitPrice,
			EffectiveUnitPrice: item.UnitPrice,
			Total:              item.UnitPrice.Mul(qty),
		}
		if cl, ok := byProduct[item.ProductID]; ok {
			line.OriginalUnitPrice = cl.UnitPrice()
			if pct := cl.DiscountPercent(); !pct.IsZero() {
				line.DiscountPercent = &pct
				line.Tier = cl.SelectedTier
			}
		}
		original = original.Add(line.OriginalUnitPrice.Mul(qty))
		discounted = discounted.Add(line.Total)
		doc.Lines = append(doc.Lines, line)
	}

	doc.OriginalSubtotal = original.Round(moneyPlaces)
	doc.DiscountTotal = original.Sub(discounted).Round(moneyPlaces)
	return doc
}
