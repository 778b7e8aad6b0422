package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/posterminal/internal/cart"
	"github.com/angelmondragon/posterminal/internal/remote"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
)

type stubQueue struct {
	pending  int64
	enqueued []types.Sale
	err      error
}

func (q *stubQueue) Enqueue(ctx context.Context, sale types.Sale) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, sale)
	q.pending++
	return nil
}

func (q *stubQueue) PendingCount(ctx context.Context) (int64, error) {
	return q.pending, nil
}

type stubSubmitter struct {
	ack   types.SaleAck
	err   error
	sales []types.Sale
}

func (s *stubSubmitter) SubmitSale(ctx context.Context, sale types.Sale) (types.SaleAck, error) {
	s.sales = append(s.sales, sale)
	return s.ack, s.err
}

// blockingSubmitter holds SubmitSale until release is closed.
type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) SubmitSale(ctx context.Context, sale types.Sale) (types.SaleAck, error) {
	close(b.started)
	<-b.release
	return types.SaleAck{SaleID: "S-2", ReceiptNumber: "R-2"}, nil
}

type stubSync struct {
	online   bool
	triggers []enums.SyncTrigger
}

func (s *stubSync) Online() bool { return s.online }
func (s *stubSync) Trigger(trigger enums.SyncTrigger) {
	s.triggers = append(s.triggers, trigger)
}

type fixture struct {
	cart      *cart.Engine
	queue     *stubQueue
	submitter *stubSubmitter
	sync      *stubSync
	svc       *Service
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	f := &fixture{
		cart:      cart.NewEngine(),
		queue:     &stubQueue{},
		submitter: &stubSubmitter{ack: types.SaleAck{SaleID: "S-1", ReceiptNumber: "R-1"}},
		sync:      &stubSync{online: online},
	}
	svc, err := NewService(ServiceParams{
		Cart:      f.cart,
		Queue:     f.queue,
		Submitter: f.submitter,
		Sync:      f.sync,
		Logger:    logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	n := 0
	svc.newKey = func() string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	f.svc = svc
	return f
}

func boltProduct() types.Product {
	return types.Product{
		ID:       "p1",
		Code:     "STL-1",
		Name:     "Steel bolt",
		Price:    d("10000"),
		Quantity: 10,
		Tiers: types.PricingTiers{
			enums.PricingTier1: {DiscountPercent: d("10")},
		},
	}
}

// fills the cart with 3 × 10000 at tier1 (10%) = 27000
func (f *fixture) fillTieredCart(t *testing.T) {
	t.Helper()
	if _, err := f.cart.AddLine(boltProduct(), 3); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := f.cart.SelectTier("p1", enums.PricingTier1); err != nil {
		t.Fatalf("select tier: %v", err)
	}
}

func TestCheckoutMixedPaymentWithDebt(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)
	if _, err := f.cart.BindCustomer(types.Customer{ID: "cust-1", Name: "Ana"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	f.submitter.ack.Debt = &types.DebtRecord{ID: "D-1", Amount: d("20000")}

	res, err := f.svc.Checkout(context.Background(), Payment{Cash: d("5000"), Card: d("2000")})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	sale := res.Sale
	if !sale.Total.Equal(d("27000")) || !sale.PaidAmount.Equal(d("7000")) || !sale.DebtAmount.Equal(d("20000")) {
		t.Fatalf("unexpected amounts total=%s paid=%s debt=%s", sale.Total, sale.PaidAmount, sale.DebtAmount)
	}
	if sale.PaymentMethod != enums.PaymentMethodMixed {
		t.Fatalf("expected mixed, got %s", sale.PaymentMethod)
	}
	if sale.CustomerID == nil || *sale.CustomerID != "cust-1" {
		t.Fatalf("expected customer on sale")
	}
	if !sale.Items[0].UnitPrice.Equal(d("9000")) {
		t.Fatalf("expected effective unit price 9000, got %s", sale.Items[0].UnitPrice)
	}
	if res.Queued || sale.SyncStatus != enums.SyncStatusSynced || sale.ReceiptNumber != "R-1" {
		t.Fatalf("expected live submission, got %+v", res)
	}
	if res.Debt == nil || res.Debt.ID != "D-1" {
		t.Fatalf("expected debt record from backend")
	}
	if res.Receipt.Customer == nil || res.Receipt.Customer.Name != "Ana" || res.Receipt.Pending {
		t.Fatalf("unexpected receipt %+v", res.Receipt)
	}
	if len(f.cart.Lines()) != 0 || f.cart.Customer() != nil {
		t.Fatalf("expected cart cleared after checkout")
	}
}

func TestCheckoutDebtWithoutCustomerIsRejected(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)

	_, err := f.svc.Checkout(context.Background(), Payment{Cash: d("5000"), Card: d("2000")})
	if !pkgerrors.HasCode(err, pkgerrors.CodeMissingCustomerForDebt) {
		t.Fatalf("expected missing customer error, got %v", err)
	}
	if len(f.submitter.sales) != 0 || len(f.queue.enqueued) != 0 {
		t.Fatalf("validation errors must not reach the network or the queue")
	}
	if len(f.cart.Lines()) != 1 {
		t.Fatalf("cart must survive a rejected checkout")
	}
}

func TestCheckoutReturnCarriesNoDebt(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)

	res, err := f.svc.Checkout(context.Background(), Payment{IsReturn: true})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !res.Sale.DebtAmount.IsZero() || !res.Sale.IsReturn {
		t.Fatalf("expected return without debt, got %+v", res.Sale)
	}
	if res.Sale.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("expected cash for zero tender, got %s", res.Sale.PaymentMethod)
	}
}

func TestCheckoutCardOnlyWithChange(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)

	res, err := f.svc.Checkout(context.Background(), Payment{Card: d("30000")})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.Sale.PaymentMethod != enums.PaymentMethodCard || !res.Sale.Change().Equal(d("3000")) {
		t.Fatalf("unexpected sale %+v", res.Sale)
	}
}

func TestCheckoutRejectsNegativeAmounts(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)

	_, err := f.svc.Checkout(context.Background(), Payment{Cash: d("-1")})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Checkout(context.Background(), Payment{Cash: d("10")})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckoutOfflineEnqueues(t *testing.T) {
	f := newFixture(t, false)
	f.fillTieredCart(t)

	res, err := f.svc.Checkout(context.Background(), Payment{Cash: d("27000")})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !res.Queued || len(f.queue.enqueued) != 1 || len(f.submitter.sales) != 0 {
		t.Fatalf("expected sale queued without a live call, got %+v", res)
	}
	if res.Sale.SyncStatus != enums.SyncStatusPending || !res.Receipt.Pending {
		t.Fatalf("expected pending sale and receipt")
	}
	if len(f.sync.triggers) != 1 || f.sync.triggers[0] != enums.SyncTriggerCheckout {
		t.Fatalf("expected a checkout sync trigger, got %v", f.sync.triggers)
	}
	if len(f.cart.Lines()) != 0 {
		t.Fatalf("expected cart cleared")
	}
}

func TestCheckoutNetworkFailureFallsBackToQueue(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)
	f.submitter.err = fmt.Errorf("%w: timeout", remote.ErrNetwork)

	res, err := f.svc.Checkout(context.Background(), Payment{Cash: d("27000")})
	if err != nil {
		t.Fatalf("network failures must not surface: %v", err)
	}
	if !res.Queued || len(f.queue.enqueued) != 1 {
		t.Fatalf("expected fallback to queue")
	}
	if f.queue.enqueued[0].IdempotencyKey != f.submitter.sales[0].IdempotencyKey {
		t.Fatalf("queued sale must keep the key used for the live attempt")
	}
}

func TestCheckoutWaitsBehindQueuedSales(t *testing.T) {
	f := newFixture(t, true)
	f.queue.pending = 2
	f.fillTieredCart(t)

	res, err := f.svc.Checkout(context.Background(), Payment{Cash: d("27000")})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !res.Queued || len(f.submitter.sales) != 0 {
		t.Fatalf("expected sale queued behind earlier sales")
	}
}

func TestCheckoutRejectionSurfacesAndKeepsCart(t *testing.T) {
	f := newFixture(t, true)
	f.fillTieredCart(t)
	f.submitter.err = pkgerrors.Wrap(pkgerrors.CodeRejected, errors.New("status 422"), "backend rejected request")

	_, err := f.svc.Checkout(context.Background(), Payment{Cash: d("27000")})
	if !pkgerrors.HasCode(err, pkgerrors.CodeRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(f.queue.enqueued) != 0 || len(f.cart.Lines()) != 1 {
		t.Fatalf("rejected sale must not be queued nor clear the cart")
	}
}

func TestCheckoutCommitsZeroQuantities(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.cart.AddLine(boltProduct(), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.cart.SetQuantity("p1", 0); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	res, err := f.svc.Checkout(context.Background(), Payment{Cash: d("10000")})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.Sale.Items[0].Quantity != 1 || !res.Sale.Total.Equal(d("10000")) {
		t.Fatalf("expected zero quantity committed to 1, got %+v", res.Sale.Items[0])
	}
}

func TestCheckoutQueueFailure(t *testing.T) {
	f := newFixture(t, false)
	f.fillTieredCart(t)
	f.queue.err = errors.New("disk full")

	_, err := f.svc.Checkout(context.Background(), Payment{Cash: d("27000")})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(f.cart.Lines()) != 1 {
		t.Fatalf("cart must survive a failed enqueue")
	}
}

func TestCheckoutFreezesCartDuringLiveSubmission(t *testing.T) {
	f := newFixture(t, true)
	blocking := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{})}
	f.svc.submitter = blocking
	f.fillTieredCart(t)

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.svc.Checkout(context.Background(), Payment{Cash: d("27000")})
		done <- outcome{res, err}
	}()

	<-blocking.started
	other := boltProduct()
	other.ID = "p2"
	_, err := f.cart.AddLine(other, 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected edits to be refused mid-checkout, got %v", err)
	}
	close(blocking.release)

	out := <-done
	if out.err != nil {
		t.Fatalf("checkout: %v", out.err)
	}
	if len(out.res.Sale.Items) != 1 || len(f.cart.Lines()) != 0 {
		t.Fatalf("expected one sold line and an empty cart, got items=%d lines=%d", len(out.res.Sale.Items), len(f.cart.Lines()))
	}
	if _, err := f.cart.AddLine(other, 1); err != nil {
		t.Fatalf("cart must accept edits once checkout finished: %v", err)
	}
}
