package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/posterminal/internal/cart"
	"github.com/angelmondragon/posterminal/internal/receipt"
	"github.com/angelmondragon/posterminal/internal/remote"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces          = 2
	defaultSubmitTimeout = 15 * time.Second
)

type cartEngine interface {
	BeginCheckout() (cart.View, error)
	EndCheckout(commit bool)
}

type saleQueue interface {
	Enqueue(ctx context.Context, sale types.Sale) error
	PendingCount(ctx context.Context) (int64, error)
}

type submitter interface {
	SubmitSale(ctx context.Context, sale types.Sale) (types.SaleAck, error)
}

type syncCoordinator interface {
	Online() bool
	Trigger(trigger enums.SyncTrigger)
}

// Payment is what the operator tendered.
type Payment struct {
	Cash     decimal.Decimal
	Card     decimal.Decimal
	IsReturn bool
}

// Result is a completed checkout. Queued means the sale waits in the offline
// queue; the operator is told it was recorded, not that it failed.
type Result struct {
	Sale    types.Sale
	Receipt receipt.Document
	Queued  bool
	Debt    *types.DebtRecord
}

type ServiceParams struct {
	Cart          cartEngine
	Queue         saleQueue
	Submitter     submitter
	Sync          syncCoordinator
	Logger        *logger.Logger
	SubmitTimeout time.Duration
}

// Service turns the cart into an immutable sale and delivers it, live when
// the backend is reachable and nothing is queued ahead, else via the queue.
type Service struct {
	cart          cartEngine
	queue         saleQueue
	submitter     submitter
	sync          syncCoordinator
	logg          *logger.Logger
	submitTimeout time.Duration
	newKey        func() string
	now           func() time.Time

	mu sync.Mutex
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart engine required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("sale queue required")
	}
	if params.Submitter == nil {
		return nil, fmt.Errorf("sale submitter required")
	}
	if params.Sync == nil {
		return nil, fmt.Errorf("sync coordinator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Service{
		cart:          params.Cart,
		queue:         params.Queue,
		submitter:     params.Submitter,
		sync:          params.Sync,
		logg:          params.Logger,
		submitTimeout: timeout,
		newKey:        uuid.NewString,
		now:           time.Now,
	}, nil
}

// Checkout finalizes the cart and records the sale. The cart is frozen while
// the sale is delivered. Validation errors leave the cart intact; a rejected
// live submission does too.
func (s *Service) Checkout(ctx context.Context, payment Payment) (*Result, error) {
	if payment.Cash.IsNegative() || payment.Card.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amounts cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.cart.BeginCheckout()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() { s.cart.EndCheckout(committed) }()

	sale := s.buildSale(view, payment)
	if sale.DebtAmount.IsPositive() && sale.CustomerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCustomerForDebt, "a customer must be bound when the sale leaves a debt").
			WithDetails(map[string]any{
				"total": sale.Total.StringFixed(moneyPlaces),
				"paid":  sale.PaidAmount.StringFixed(moneyPlaces),
				"debt":  sale.DebtAmount.StringFixed(moneyPlaces),
			})
	}

	logCtx := s.logg.WithSaleKey(ctx, sale.IdempotencyKey)
	result, err := s.deliver(logCtx, sale)
	if err != nil {
		return nil, err
	}

	committed = true
	result.Receipt = receipt.Compose(result.Sale, view.Lines)
	result.Receipt.Customer = view.Customer
	return result, nil
}

func (s *Service) buildSale(view cart.View, payment Payment) types.Sale {
	items := make([]types.SaleItem, 0, len(view.Lines))
	for _, line := range view.Lines {
		items = append(items, types.SaleItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Code:      line.Product.Code,
			UnitPrice: line.EffectiveUnitPrice(),
			Quantity:  line.Quantity,
		})
	}

	total := view.Total.Round(moneyPlaces)
	paid := payment.Cash.Add(payment.Card)
	debt := decimal.Zero
	if !payment.IsReturn {
		if owed := total.Sub(paid); owed.IsPositive() {
			debt = owed
		}
	}

	sale := types.Sale{
		IdempotencyKey: s.newKey(),
		Items:          items,
		Total:          total,
		CashAmount:     payment.Cash,
		CardAmount:     payment.Card,
		PaidAmount:     paid,
		DebtAmount:     debt,
		PaymentMethod:  enums.PaymentMethodFor(payment.Cash, payment.Card),
		IsReturn:       payment.IsReturn,
		SyncStatus:     enums.SyncStatusPending,
		CreatedAt:      s.now().UTC(),
	}
	if view.Customer != nil {
		id := view.Customer.ID
		sale.CustomerID = &id
	}
	return sale
}

func (s *Service) deliver(ctx context.Context, sale types.Sale) (*Result, error) {
	pending, err := s.queue.PendingCount(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read sale queue")
	}
	if !s.sync.Online() || pending > 0 {
		// sales ahead in the queue go first
		return s.enqueue(ctx, sale)
	}

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
	defer cancel()
	ack, err := s.submitter.SubmitSale(submitCtx, sale)
	if err != nil {
		if remote.IsRejected(err) {
			return nil, err
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "live sale submission failed; queueing")
		return s.enqueue(ctx, sale)
	}

	synced := sale.Synced(ack)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"remote_sale_id": ack.SaleID,
		"duplicate":      ack.Duplicate,
	}), "sale submitted")
	return &Result{Sale: synced, Debt: ack.Debt}, nil
}

func (s *Service) enqueue(ctx context.Context, sale types.Sale) (*Result, error) {
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), sale); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue sale")
	}
	s.sync.Trigger(enums.SyncTriggerCheckout)
	s.logg.Info(ctx, "sale queued for sync")
	return &Result{Sale: sale, Queued: true}, nil
}
