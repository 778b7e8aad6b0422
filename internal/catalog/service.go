package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/posterminal/pkg/debounce"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/metrics"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// ErrNoCatalogData means the device never loaded a catalog and has no cache.
var ErrNoCatalogData = errors.New("no catalog data available")

// Source names where Load found the catalog.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceMemory Source = "memory"
	SourceNone   Source = "none"
)

const (
	defaultPersistDelay   = 2 * time.Second
	defaultEventBuffer    = 256
	defaultPersistTimeout = 10 * time.Second
)

// Fetcher pulls the full product set from the backend.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]types.Product, error)
}

type ServiceParams struct {
	Fetcher      Fetcher
	Repository   Repository
	Snapshot     *Snapshot
	Bus          *Bus
	Logger       *logger.Logger
	Metrics      *metrics.CatalogMetrics
	PersistDelay time.Duration
	EventBuffer  int
}

// Service keeps the in-memory snapshot and the durable cache eventually
// consistent with the backend.
type Service struct {
	fetcher     Fetcher
	repo        Repository
	snapshot    *Snapshot
	bus         *Bus
	logg        *logger.Logger
	metrics     *metrics.CatalogMetrics
	persist     *debounce.Debouncer
	eventBuffer int
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Fetcher == nil {
		return nil, errors.New("catalog fetcher is required")
	}
	if params.Repository == nil {
		return nil, errors.New("catalog repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	snapshot := params.Snapshot
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	bus := params.Bus
	if bus == nil {
		bus = NewBus()
	}
	delay := params.PersistDelay
	if delay <= 0 {
		delay = defaultPersistDelay
	}
	buffer := params.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Service{
		fetcher:     params.Fetcher,
		repo:        params.Repository,
		snapshot:    snapshot,
		bus:         bus,
		logg:        params.Logger,
		metrics:     params.Metrics,
		persist:     debounce.New(delay),
		eventBuffer: buffer,
	}, nil
}

// Bus exposes the event stream the push consumer publishes on.
func (s *Service) Bus() *Bus {
	return s.bus
}

// Load pulls the catalog from the backend and writes it through to the cache.
// When the pull fails it falls back to the cache, then to whatever is already
// in memory. With nothing anywhere it returns ErrNoCatalogData.
func (s *Service) Load(ctx context.Context) (Source, error) {
	products, err := s.fetcher.FetchProducts(ctx)
	if err == nil {
		s.install(ctx, products)
		s.metrics.IncLoad(string(SourceRemote))
		return SourceRemote, nil
	}

	warnCtx := s.logg.WithField(ctx, "error", err.Error())
	s.logg.Warn(warnCtx, "catalog pull failed; falling back to local cache")

	cached, cacheErr := s.repo.ReadAll(ctx)
	if cacheErr != nil {
		s.logg.Error(ctx, "catalog cache read failed", cacheErr)
	}
	if cacheErr == nil && len(cached) > 0 {
		s.snapshot.Replace(cached)
		s.metrics.IncLoad(string(SourceCache))
		s.metrics.SetSize(len(cached))
		return SourceCache, nil
	}

	if s.snapshot.Loaded() {
		s.metrics.IncLoad(string(SourceMemory))
		return SourceMemory, nil
	}

	s.metrics.IncLoad(string(SourceNone))
	return SourceNone, pkgerrors.Wrap(pkgerrors.CodeNoCatalogData, ErrNoCatalogData, "catalog unavailable: remote pull failed and no cache exists")
}

// Refresh re-pulls from the backend without falling back.
func (s *Service) Refresh(ctx context.Context) error {
	products, err := s.fetcher.FetchProducts(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	s.install(ctx, products)
	s.metrics.IncLoad(string(SourceRemote))
	return nil
}

func (s *Service) install(ctx context.Context, products []types.Product) {
	s.snapshot.Replace(products)
	s.metrics.SetSize(len(products))
	// a fresh full write supersedes any pending patch persistence
	s.persist.Cancel()
	if err := s.repo.WriteAll(ctx, products); err != nil {
		s.logg.Error(ctx, "catalog cache write failed", err)
	}
}

// Products returns the searchable corpus. It fails with ErrNoCatalogData
// until some catalog was loaded.
func (s *Service) Products(ctx context.Context) ([]types.Product, error) {
	if !s.snapshot.Loaded() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNoCatalogData, ErrNoCatalogData, "catalog not loaded")
	}
	return s.snapshot.Products(), nil
}

// Product looks up one product for the cart.
func (s *Service) Product(ctx context.Context, id string) (types.Product, error) {
	if !s.snapshot.Loaded() {
		return types.Product{}, pkgerrors.Wrap(pkgerrors.CodeNoCatalogData, ErrNoCatalogData, "catalog not loaded")
	}
	p, ok := s.snapshot.Get(id)
	if !ok {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

// Run applies bus events to the snapshot in receipt order until ctx is done,
// persisting the patched snapshot once each burst goes quiet.
func (s *Service) Run(ctx context.Context) error {
	events, cancel := s.bus.Subscribe(s.eventBuffer)
	defer cancel()
	defer s.persist.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			s.apply(ctx, ev)
		}
	}
}

func (s *Service) apply(ctx context.Context, ev Event) {
	if !s.snapshot.Apply(ev) {
		return
	}
	s.metrics.IncEvent(string(ev.Type))
	s.metrics.SetSize(s.snapshot.Len())
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_type": ev.Type,
		"product_id": ev.ProductID,
	}), "catalog event applied")
	s.persist.Trigger(s.persistSnapshot)
}

func (s *Service) persistSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPersistTimeout)
	defer cancel()
	products := s.snapshot.Products()
	if err := s.repo.WriteAll(ctx, products); err != nil {
		s.logg.Error(ctx, "catalog snapshot persist failed", err)
		return
	}
	s.logg.Debug(s.logg.WithField(ctx, "products", len(products)), "catalog snapshot persisted")
}
