package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/posterminal/internal/checkout"
	"github.com/angelmondragon/posterminal/internal/salequeue"
	"github.com/angelmondragon/posterminal/internal/salesync"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/pagination"
	"github.com/angelmondragon/posterminal/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

type stubCatalog struct {
	products []types.Product
	err      error
}

func (s stubCatalog) Products(context.Context) ([]types.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func (s stubCatalog) Product(_ context.Context, id string) (types.Product, error) {
	if s.err != nil {
		return types.Product{}, s.err
	}
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return types.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func sampleProducts() []types.Product {
	return []types.Product{
		{
			ID:       "p1",
			Code:     "CAF-01",
			Name:     "Cafe molido",
			Price:    decimal.NewFromInt(10000),
			Quantity: 5,
			Tiers: types.PricingTiers{
				enums.PricingTier1: {DiscountPercent: decimal.NewFromInt(10)},
			},
		},
		{ID: "p2", Code: "AZU-02", Name: "Azucar", Price: decimal.NewFromInt(3500), Quantity: 0},
		{ID: "p3", Code: "LEC-03", Name: "Leche entera", Price: decimal.NewFromInt(4200), Quantity: 12},
	}
}

type stubTypeahead struct {
	results  []types.Product
	executed bool
	queries  []string
}

func (s *stubTypeahead) Submit(_ context.Context, query string) ([]types.Product, bool, error) {
	s.queries = append(s.queries, query)
	if !s.executed {
		return nil, false, nil
	}
	return s.results, true, nil
}

type stubCheckout struct {
	result   *checkout.Result
	err      error
	payments []checkout.Payment
}

func (s *stubCheckout) Checkout(_ context.Context, payment checkout.Payment) (*checkout.Result, error) {
	s.payments = append(s.payments, payment)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubSync struct {
	status   salesync.Status
	triggers []enums.SyncTrigger
}

func (s *stubSync) Status(context.Context) (salesync.Status, error) {
	return s.status, nil
}

func (s *stubSync) Trigger(trigger enums.SyncTrigger) {
	s.triggers = append(s.triggers, trigger)
}

type stubFailed struct {
	entries  []salequeue.Entry
	requeued []string
	params   pagination.Params
}

func (s *stubFailed) ListFailedPage(_ context.Context, params pagination.Params) (salequeue.Page, error) {
	s.params = params
	if params.Cursor == "bad" {
		return salequeue.Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	return salequeue.Page{Entries: s.entries, NextCursor: "next"}, nil
}

func (s *stubFailed) Requeue(_ context.Context, key string) error {
	for _, e := range s.entries {
		if e.Key() == key {
			s.requeued = append(s.requeued, key)
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "no failed sale with that key")
}
