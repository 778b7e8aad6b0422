package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/posterminal/api/responses"
	"github.com/angelmondragon/posterminal/api/validators"
	"github.com/angelmondragon/posterminal/internal/ranking"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/types"
)

const maxQueryLen = 128

// CatalogReader is the read side of the local catalog.
type CatalogReader interface {
	Products(ctx context.Context) ([]types.Product, error)
	Product(ctx context.Context, id string) (types.Product, error)
}

// Typeahead ranks the last query of a keystroke burst.
type Typeahead interface {
	Submit(ctx context.Context, query string) ([]types.Product, bool, error)
}

type searchResponse struct {
	Query      string          `json:"query"`
	Superseded bool            `json:"superseded"`
	Results    []types.Product `json:"results"`
}

// ProductSearch ranks the catalog against ?q= immediately.
func ProductSearch(catalog CatalogReader, defaultLimit int, logg *logger.Logger) http.HandlerFunc {
	if defaultLimit <= 0 {
		defaultLimit = ranking.DefaultLimit
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		query := validators.SanitizeString(r.URL.Query().Get("q"), maxQueryLen)
		limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if query == "" {
			responses.WriteSuccess(w, searchResponse{Query: query, Results: []types.Product{}})
			return
		}

		corpus, err := catalog.Products(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results := ranking.SearchN(query, corpus, limit)
		if results == nil {
			results = []types.Product{}
		}
		responses.WriteSuccess(w, searchResponse{Query: query, Results: results})
	}
}

type typeaheadRequest struct {
	Query string `json:"query"`
}

// ProductTypeahead debounces as-you-type queries. A request overtaken by a
// newer keystroke returns superseded=true and no results.
func ProductTypeahead(live Typeahead, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if live == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search unavailable"))
			return
		}

		var payload typeaheadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := validators.SanitizeString(payload.Query, maxQueryLen)

		results, executed, err := live.Submit(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if results == nil {
			results = []types.Product{}
		}
		responses.WriteSuccess(w, searchResponse{Query: query, Superseded: !executed, Results: results})
	}
}

// ProductGet returns one catalog product.
func ProductGet(catalog CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := catalog.Product(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
