package types

import (
	"time"

	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/shopspring/decimal"
)

// SaleItem is the frozen line of a sale. UnitPrice is the effective unit
// price after any tier discount.
type SaleItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Sale is the unit submitted to the backend or queued offline. Treat it as a
// value: methods return modified copies.
type Sale struct {
	IdempotencyKey string              `json:"idempotencyKey"`
	Items          []SaleItem          `json:"items"`
	Total          decimal.Decimal     `json:"total"`
	CashAmount     decimal.Decimal     `json:"cashAmount"`
	CardAmount     decimal.Decimal     `json:"cardAmount"`
	PaidAmount     decimal.Decimal     `json:"paidAmount"`
	DebtAmount     decimal.Decimal     `json:"debtAmount"`
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod"`
	IsReturn       bool                `json:"isReturn"`
	CustomerID     *string             `json:"customerId,omitempty"`
	SyncStatus     enums.SyncStatus    `json:"syncStatus"`
	CreatedAt      time.Time           `json:"createdAt"`
	RemoteSaleID   string              `json:"remoteSaleId,omitempty"`
	ReceiptNumber  string              `json:"receiptNumber,omitempty"`
}

// SaleAck is the backend acknowledgement of a submitted sale.
type SaleAck struct {
	SaleID        string      `json:"saleId"`
	ReceiptNumber string      `json:"receiptNumber"`
	Duplicate     bool        `json:"duplicate"`
	Debt          *DebtRecord `json:"debt,omitempty"`
}

// DebtRecord is the server-side debt created for a partially paid sale.
type DebtRecord struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// Change is what the cashier hands back; never negative.
func (s Sale) Change() decimal.Decimal {
	change := s.PaidAmount.Sub(s.Total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// Synced returns a copy marked as acknowledged by the backend.
func (s Sale) Synced(ack SaleAck) Sale {
	out := s.clone()
	out.SyncStatus = enums.SyncStatusSynced
	out.RemoteSaleID = ack.SaleID
	out.ReceiptNumber = ack.ReceiptNumber
	return out
}

func (s Sale) clone() Sale {
	out := s
	out.Items = append([]SaleItem(nil), s.Items...)
	if s.CustomerID != nil {
		id := *s.CustomerID
		out.CustomerID = &id
	}
	return out
}
