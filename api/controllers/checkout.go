package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/posterminal/api/responses"
	"github.com/angelmondragon/posterminal/api/validators"
	"github.com/angelmondragon/posterminal/internal/checkout"
	"github.com/angelmondragon/posterminal/internal/receipt"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// CheckoutService finalizes the cart into a sale.
type CheckoutService interface {
	Checkout(ctx context.Context, payment checkout.Payment) (*checkout.Result, error)
}

type checkoutRequest struct {
	Cash     *decimal.Decimal `json:"cash"`
	Card     *decimal.Decimal `json:"card"`
	IsReturn bool             `json:"isReturn"`
}

func (r checkoutRequest) toPayment() checkout.Payment {
	payment := checkout.Payment{Cash: decimal.Zero, Card: decimal.Zero, IsReturn: r.IsReturn}
	if r.Cash != nil {
		payment.Cash = *r.Cash
	}
	if r.Card != nil {
		payment.Card = *r.Card
	}
	return payment
}

type checkoutResponse struct {
	Sale    types.Sale        `json:"sale"`
	Receipt receipt.Document  `json:"receipt"`
	Queued  bool              `json:"queued"`
	Change  decimal.Decimal   `json:"change"`
	Debt    *types.DebtRecord `json:"debt,omitempty"`
}

// Checkout records the sale. 201 means the backend accepted it, 202 means it
// was stored offline and will sync later.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), payload.toPayment())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Queued {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, checkoutResponse{
			Sale:    result.Sale,
			Receipt: result.Receipt,
			Queued:  result.Queued,
			Change:  result.Sale.Change(),
			Debt:    result.Debt,
		})
	}
}
