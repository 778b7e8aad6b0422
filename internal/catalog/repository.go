package catalog

import (
	"context"
	"fmt"

	"github.com/angelmondragon/posterminal/internal/repo"
	"github.com/angelmondragon/posterminal/pkg/db/models"
	"github.com/angelmondragon/posterminal/pkg/types"
	"gorm.io/gorm"
)

// Repository is the durable mirror of the catalog.
type Repository interface {
	// ReadAll returns the last written snapshot, possibly stale or empty.
	ReadAll(ctx context.Context) ([]types.Product, error)
	// WriteAll atomically replaces the stored snapshot.
	WriteAll(ctx context.Context, products []types.Product) error
}

type gormRepository struct {
	repo.Base
}

// NewRepository returns a Repository over the local gorm store.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) ReadAll(ctx context.Context) ([]types.Product, error) {
	var rows []models.CachedProduct
	if err := r.DB(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read cached products: %w", err)
	}
	out := make([]types.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (r *gormRepository) WriteAll(ctx context.Context, products []types.Product) error {
	rows := make([]models.CachedProduct, 0, len(products))
	for i, p := range products {
		rows = append(rows, toRow(i, p))
	}
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CachedProduct{}).Error; err != nil {
			return fmt.Errorf("clear cached products: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("write cached products: %w", err)
		}
		return nil
	})
}

func toRow(position int, p types.Product) models.CachedProduct {
	row := models.CachedProduct{
		ID:       p.ID,
		Position: position,
		Code:     p.Code,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: p.Quantity,
		Images:   p.Images,
		Tiers:    p.Tiers,
	}
	if !p.UpdatedAt.IsZero() {
		updated := p.UpdatedAt.UTC()
		row.UpdatedAt = &updated
	}
	return row
}

func fromRow(row models.CachedProduct) types.Product {
	p := types.Product{
		ID:       row.ID,
		Code:     row.Code,
		Name:     row.Name,
		Price:    row.Price,
		Quantity: row.Quantity,
		Images:   row.Images,
		Tiers:    row.Tiers,
	}
	if row.UpdatedAt != nil {
		p.UpdatedAt = *row.UpdatedAt
	}
	return p
}
