package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/posterminal/internal/cart"
	"github.com/angelmondragon/posterminal/internal/checkout"
	"github.com/angelmondragon/posterminal/internal/salequeue"
	"github.com/angelmondragon/posterminal/internal/salesync"
	"github.com/angelmondragon/posterminal/pkg/config"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/pagination"
	"github.com/angelmondragon/posterminal/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCatalog struct{}

var coffee = types.Product{ID: "p1", Code: "CAF", Name: "Cafe", Price: decimal.NewFromInt(100), Quantity: 3}

func (stubCatalog) Products(context.Context) ([]types.Product, error) {
	return []types.Product{coffee}, nil
}

func (stubCatalog) Product(_ context.Context, id string) (types.Product, error) {
	if id == coffee.ID {
		return coffee, nil
	}
	return types.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

type stubTypeahead struct{}

func (stubTypeahead) Submit(context.Context, string) ([]types.Product, bool, error) {
	return []types.Product{coffee}, true, nil
}

type stubCheckout struct{}

func (stubCheckout) Checkout(context.Context, checkout.Payment) (*checkout.Result, error) {
	return &checkout.Result{Sale: types.Sale{IdempotencyKey: "k"}, Queued: true}, nil
}

type stubSync struct{}

func (stubSync) Status(context.Context) (salesync.Status, error) {
	return salesync.Status{State: "idle"}, nil
}

func (stubSync) Trigger(enums.SyncTrigger) {}

type stubFailed struct{}

func (stubFailed) ListFailedPage(context.Context, pagination.Params) (salequeue.Page, error) {
	return salequeue.Page{}, nil
}

func (stubFailed) Requeue(context.Context, string) error {
	return nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "dev"
	cfg.Device.ID = "register-1"
	cfg.Search.Limit = 20

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_terminal_test_total", Help: "test"}))

	return NewRouter(Deps{
		Config:      cfg,
		Logger:      logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard}),
		DB:          stubPinger{},
		Gatherer:    reg,
		Catalog:     stubCatalog{},
		Typeahead:   stubTypeahead{},
		Cart:        cart.NewEngine(),
		Checkout:    stubCheckout{},
		Sync:        stubSync{},
		FailedSales: stubFailed{},
	})
}

func TestRouterMountsRoutes(t *testing.T) {
	router := testRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/health/ready", "", http.StatusOK},
		{http.MethodGet, "/api/v1/products/search?q=caf", "", http.StatusOK},
		{http.MethodPost, "/api/v1/products/typeahead", `{"query":"caf"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/products/p1", "", http.StatusOK},
		{http.MethodPost, "/api/v1/cart/lines", `{"productId":"p1","quantity":1}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/cart", "", http.StatusOK},
		{http.MethodPut, "/api/v1/cart/lines/p1/quantity", `{"quantity":2}`, http.StatusOK},
		{http.MethodPost, "/api/v1/cart/lines/p1/commit", "", http.StatusOK},
		{http.MethodPut, "/api/v1/cart/lines/p1/tier", `{"tier":"none"}`, http.StatusOK},
		{http.MethodPut, "/api/v1/cart/customer", `{"id":"c1"}`, http.StatusOK},
		{http.MethodDelete, "/api/v1/cart/customer", "", http.StatusOK},
		{http.MethodDelete, "/api/v1/cart/lines/p1", "", http.StatusOK},
		{http.MethodDelete, "/api/v1/cart", "", http.StatusNoContent},
		{http.MethodPost, "/api/v1/checkout", `{"cash":"100"}`, http.StatusAccepted},
		{http.MethodGet, "/api/v1/sync", "", http.StatusOK},
		{http.MethodPost, "/api/v1/sync", "", http.StatusAccepted},
		{http.MethodGet, "/api/v1/sync/failed", "", http.StatusOK},
		{http.MethodPost, "/api/v1/sync/failed/k/requeue", "", http.StatusAccepted},
	}

	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		req := httptest.NewRequest(tt.method, tt.path, body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("%s %s: expected %d got %d (%s)", tt.method, tt.path, tt.want, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Device-Id") != "register-1" {
			t.Fatalf("%s %s: missing device header", tt.method, tt.path)
		}
	}
}

func TestRouterServesMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pos_terminal_test_total") {
		t.Fatalf("expected registered metric in exposition")
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
