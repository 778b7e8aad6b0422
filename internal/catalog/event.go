package catalog

import (
	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// Event is one catalog change pushed by the backend. Product is set for
// created/updated; ProductID identifies the row for every type.
type Event struct {
	Type      enums.CatalogEventType
	Product   types.Product
	ProductID string
}

// Created builds a product:created event.
func Created(p types.Product) Event {
	return Event{Type: enums.CatalogEventProductCreated, Product: p, ProductID: p.ID}
}

// Updated builds a product:updated event.
func Updated(p types.Product) Event {
	return Event{Type: enums.CatalogEventProductUpdated, Product: p, ProductID: p.ID}
}

// Deleted builds a product:deleted event.
func Deleted(id string) Event {
	return Event{Type: enums.CatalogEventProductDeleted, ProductID: id}
}
