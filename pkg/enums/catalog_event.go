package enums

import "fmt"

// CatalogEventType is the push channel event name for product changes.
type CatalogEventType string

const (
	CatalogEventProductCreated CatalogEventType = "product:created"
	CatalogEventProductUpdated CatalogEventType = "product:updated"
	CatalogEventProductDeleted CatalogEventType = "product:deleted"
)

var validCatalogEventTypes = []CatalogEventType{
	CatalogEventProductCreated,
	CatalogEventProductUpdated,
	CatalogEventProductDeleted,
}

// String implements fmt.Stringer.
func (c CatalogEventType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CatalogEventType.
func (c CatalogEventType) IsValid() bool {
	for _, candidate := range validCatalogEventTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCatalogEventType converts raw input into a CatalogEventType.
func ParseCatalogEventType(value string) (CatalogEventType, error) {
	for _, candidate := range validCatalogEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid catalog event type %q", value)
}
