package ranking

import (
	"context"
	"errors"

	"github.com/angelmondragon/posterminal/pkg/debounce"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// CorpusProvider supplies the products to rank against.
type CorpusProvider interface {
	Products(ctx context.Context) ([]types.Product, error)
}

// LiveSearch debounces typeahead queries so only the last keystroke of a
// burst is evaluated.
type LiveSearch struct {
	debouncer *debounce.Debouncer
	corpus    CorpusProvider
	limit     int
}

// NewLiveSearch wires a debouncer and corpus into a LiveSearch.
func NewLiveSearch(d *debounce.Debouncer, corpus CorpusProvider, limit int) (*LiveSearch, error) {
	if d == nil {
		return nil, errors.New("debouncer required")
	}
	if corpus == nil {
		return nil, errors.New("corpus provider required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &LiveSearch{debouncer: d, corpus: corpus, limit: limit}, nil
}

// Submit waits out the quiet period. A call superseded by a newer Submit
// returns executed=false and no results.
func (l *LiveSearch) Submit(ctx context.Context, query string) ([]types.Product, bool, error) {
	executed, err := l.debouncer.Wait(ctx)
	if err != nil || !executed {
		return nil, false, err
	}
	return l.Evaluate(ctx, query)
}

// Evaluate ranks immediately, bypassing the debouncer. An empty query means
// search is not active and never touches the corpus.
func (l *LiveSearch) Evaluate(ctx context.Context, query string) ([]types.Product, bool, error) {
	if query == "" {
		return []types.Product{}, true, nil
	}
	corpus, err := l.corpus.Products(ctx)
	if err != nil {
		return nil, false, err
	}
	return SearchN(query, corpus, l.limit), true, nil
}
