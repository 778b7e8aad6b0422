package catalog

import (
	"sync"

	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// Snapshot is the in-memory product list the terminal searches and sells
// from. Reads return copies.
type Snapshot struct {
	mu       sync.RWMutex
	products []types.Product
	loaded   bool
}

func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Replace swaps in a full product set and marks the snapshot as loaded.
func (s *Snapshot) Replace(products []types.Product) {
	next := cloneAll(products)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = next
	s.loaded = true
}

// Apply patches the snapshot with one event. It reports whether anything
// changed; a delete of an unknown id or an unknown type is ignored.
func (s *Snapshot) Apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case enums.CatalogEventProductCreated, enums.CatalogEventProductUpdated:
		if ev.Product.ID == "" {
			return false
		}
		p := ev.Product.Clone()
		if idx := s.indexLocked(p.ID); idx >= 0 {
			s.products[idx] = p
		} else {
			s.products = append(s.products, p)
		}
		return true
	case enums.CatalogEventProductDeleted:
		id := ev.ProductID
		if id == "" {
			id = ev.Product.ID
		}
		idx := s.indexLocked(id)
		if idx < 0 {
			return false
		}
		s.products = append(s.products[:idx], s.products[idx+1:]...)
		return true
	default:
		return false
	}
}

// Products returns a copy of the current list in snapshot order.
func (s *Snapshot) Products() []types.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.products)
}

// Get returns the product with id.
func (s *Snapshot) Get(id string) (types.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.products[idx].Clone(), true
	}
	return types.Product{}, false
}

// Loaded reports whether any product set was ever installed.
func (s *Snapshot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func (s *Snapshot) indexLocked(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(in []types.Product) []types.Product {
	out := make([]types.Product, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
