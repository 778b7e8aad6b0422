package remote

import (
	"encoding/json"
	"errors"

	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
)

type saleItemRequest struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// saleRequest is the wire body of POST /api/v1/sales. Debt and stock are the
// backend's to compute, so they are not sent.
type saleRequest struct {
	IdempotencyKey string              `json:"idempotencyKey"`
	Items          []saleItemRequest   `json:"items"`
	Total          decimal.Decimal     `json:"total"`
	PaidAmount     decimal.Decimal     `json:"paidAmount"`
	CashAmount     decimal.Decimal     `json:"cashAmount"`
	CardAmount     decimal.Decimal     `json:"cardAmount"`
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod"`
	IsReturn       bool                `json:"isReturn"`
	CustomerID     *string             `json:"customerId,omitempty"`
}

func newSaleRequest(sale types.Sale) saleRequest {
	items := make([]saleItemRequest, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, saleItemRequest(item))
	}
	return saleRequest{
		IdempotencyKey: sale.IdempotencyKey,
		Items:          items,
		Total:          sale.Total,
		PaidAmount:     sale.PaidAmount,
		CashAmount:     sale.CashAmount,
		CardAmount:     sale.CardAmount,
		PaymentMethod:  sale.PaymentMethod,
		IsReturn:       sale.IsReturn,
		CustomerID:     sale.CustomerID,
	}
}

type saleAckPayload struct {
	SaleID        string            `json:"saleId"`
	ReceiptNumber string            `json:"receiptNumber"`
	Duplicate     bool              `json:"duplicate"`
	Debt          *types.DebtRecord `json:"debt,omitempty"`
}

func decodeAck(body []byte) (types.SaleAck, error) {
	var envelope struct {
		Data *saleAckPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.SaleAck{}, err
	}
	if envelope.Data == nil {
		return types.SaleAck{}, errors.New("missing data in sale response")
	}
	return types.SaleAck(*envelope.Data), nil
}
