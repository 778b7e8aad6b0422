package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/posterminal/api/controllers"
	"github.com/angelmondragon/posterminal/api/middleware"
	"github.com/angelmondragon/posterminal/pkg/config"
	"github.com/angelmondragon/posterminal/pkg/db"
	"github.com/angelmondragon/posterminal/pkg/logger"
	pkgredis "github.com/angelmondragon/posterminal/pkg/redis"
)

// Deps are the collaborators the local API serves. Redis and Gatherer are
// optional.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	Gatherer prometheus.Gatherer

	Catalog     controllers.CatalogReader
	Typeahead   controllers.Typeahead
	Cart        controllers.CartEngine
	Checkout    controllers.CheckoutService
	Sync        controllers.SyncController
	FailedSales controllers.FailedSales
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Device(cfg.Device.ID),
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Applied per route so the matched pattern is complete when it runs.
	idempotent := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		idempotent = middleware.Idempotency(deps.Redis, logg, cfg.Sync.IdempotencyTTL)
	}

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/products", func(r chi.Router) {
			r.Get("/search", controllers.ProductSearch(deps.Catalog, cfg.Search.Limit, logg))
			r.Post("/typeahead", controllers.ProductTypeahead(deps.Typeahead, logg))
			r.Get("/{productID}", controllers.ProductGet(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/lines", controllers.CartAddLine(deps.Cart, deps.Catalog, logg))
			r.Delete("/lines/{productID}", controllers.CartRemoveLine(deps.Cart, logg))
			r.Put("/lines/{productID}/quantity", controllers.CartSetQuantity(deps.Cart, logg))
			r.Post("/lines/{productID}/commit", controllers.CartCommitQuantity(deps.Cart, logg))
			r.Put("/lines/{productID}/tier", controllers.CartSelectTier(deps.Cart, logg))
			r.Put("/customer", controllers.CartBindCustomer(deps.Cart, logg))
			r.Delete("/customer", controllers.CartUnbindCustomer(deps.Cart, logg))
		})

		r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/sync", func(r chi.Router) {
			r.Get("/", controllers.SyncStatus(deps.Sync, logg))
			r.Post("/", controllers.SyncTrigger(deps.Sync, logg))
			r.Get("/failed", controllers.SyncFailedList(deps.FailedSales, logg))
			r.With(idempotent).Post("/failed/{key}/requeue", controllers.SyncRequeue(deps.FailedSales, deps.Sync, logg))
		})
	})

	return r
}
