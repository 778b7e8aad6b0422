package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/types"
)

type stubFetcher struct {
	products []types.Product
	err      error
	calls    int
}

func (s *stubFetcher) FetchProducts(ctx context.Context) ([]types.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

type memoryRepository struct {
	mu       sync.Mutex
	products []types.Product
	writes   int
	readErr  error
}

func (m *memoryRepository) ReadAll(ctx context.Context) ([]types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return cloneAll(m.products), nil
}

func (m *memoryRepository) WriteAll(ctx context.Context, products []types.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = cloneAll(products)
	m.writes++
	return nil
}

func (m *memoryRepository) snapshot() ([]types.Product, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.products), m.writes
}

func newTestService(t *testing.T, fetcher Fetcher, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Fetcher:      fetcher,
		Repository:   repo,
		Logger:       logger.Nop(),
		PersistDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoadFromRemoteWritesThrough(t *testing.T) {
	repo := &memoryRepository{}
	fetcher := &stubFetcher{products: []types.Product{product("a", "Apple", 10)}}
	svc := newTestService(t, fetcher, repo)

	source, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source != SourceRemote {
		t.Fatalf("expected remote source, got %s", source)
	}
	stored, writes := repo.snapshot()
	if writes != 1 || len(stored) != 1 {
		t.Fatalf("expected write-through, got writes=%d stored=%d", writes, len(stored))
	}
}

func TestLoadFallsBackToCache(t *testing.T) {
	repo := &memoryRepository{products: []types.Product{product("c", "Cached", 1)}}
	svc := newTestService(t, &stubFetcher{err: errors.New("offline")}, repo)

	source, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source != SourceCache {
		t.Fatalf("expected cache source, got %s", source)
	}
	products, err := svc.Products(context.Background())
	if err != nil || len(products) != 1 || products[0].ID != "c" {
		t.Fatalf("expected cached products, got %v %v", products, err)
	}
}

func TestLoadKeepsMemoryWhenCacheEmpty(t *testing.T) {
	repo := &memoryRepository{}
	fetcher := &stubFetcher{products: []types.Product{product("a", "Apple", 10)}}
	svc := newTestService(t, fetcher, repo)
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("first load: %v", err)
	}

	fetcher.err = errors.New("offline")
	repo.readErr = errors.New("disk gone")
	source, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if source != SourceMemory {
		t.Fatalf("expected memory source, got %s", source)
	}
}

func TestLoadWithNoDataFails(t *testing.T) {
	svc := newTestService(t, &stubFetcher{err: errors.New("offline")}, &memoryRepository{})

	_, err := svc.Load(context.Background())
	if !errors.Is(err, ErrNoCatalogData) {
		t.Fatalf("expected ErrNoCatalogData, got %v", err)
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeNoCatalogData) {
		t.Fatalf("expected no catalog data code")
	}
	if _, err := svc.Products(context.Background()); !errors.Is(err, ErrNoCatalogData) {
		t.Fatalf("expected Products to fail before load, got %v", err)
	}
}

func TestProductLookup(t *testing.T) {
	fetcher := &stubFetcher{products: []types.Product{product("a", "Apple", 10)}}
	svc := newTestService(t, fetcher, &memoryRepository{})
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if p, err := svc.Product(context.Background(), "a"); err != nil || p.Name != "Apple" {
		t.Fatalf("expected Apple, got %+v %v", p, err)
	}
	if _, err := svc.Product(context.Background(), "nope"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunAppliesEventsAndPersists(t *testing.T) {
	repo := &memoryRepository{}
	fetcher := &stubFetcher{products: []types.Product{product("a", "Apple", 10)}}
	svc := newTestService(t, fetcher, repo)
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitFor(t, func() bool { return svc.Bus().subscriberCount() == 1 })

	pub := context.Background()
	mustPublish(t, svc.Bus(), pub, Created(product("b", "Banana", 5)))
	mustPublish(t, svc.Bus(), pub, Updated(product("a", "Apricot", 11)))
	mustPublish(t, svc.Bus(), pub, Deleted("b"))

	waitFor(t, func() bool {
		stored, _ := repo.snapshot()
		return len(stored) == 1 && stored[0].Name == "Apricot"
	})

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	products, _ := svc.Products(context.Background())
	if len(products) != 1 || products[0].Name != "Apricot" {
		t.Fatalf("unexpected snapshot: %+v", products)
	}
}

func mustPublish(t *testing.T, bus *Bus, ctx context.Context, ev Event) {
	t.Helper()
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
