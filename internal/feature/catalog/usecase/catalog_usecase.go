// Package usecase implements the business logic for the product catalog.
package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront_backend/internal/feature/catalog/domain/entity"
)

// ProductRepository abstracts the persistence layer for products.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type ProductRepository interface {
	// List は作成日時の新しい順に全商品を返します。
	List(ctx context.Context) ([]entity.Product, error)
	// FindByID は商品を1件返します。存在しない場合は ErrProductNotFound を返します。
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// Upsert は商品を作成または更新します。
	Upsert(ctx context.Context, products []entity.Product) error
}

// CatalogUsecase provides business logic for catalog operations.
type CatalogUsecase struct {
	repo ProductRepository
	now  func() time.Time
}

// NewCatalogUsecase creates a new CatalogUsecase with the given repository.
func NewCatalogUsecase(r ProductRepository) *CatalogUsecase {
	return &CatalogUsecase{repo: r, now: time.Now}
}

// ListProducts returns all products, newest first.
func (u *CatalogUsecase) ListProducts(ctx context.Context) ([]entity.Product, error) {
	products, err := u.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product by id.
func (u *CatalogUsecase) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrProductNotFound
	}
	return u.repo.FindByID(ctx, id)
}

// ImportProducts validates and upserts products. IDが空の商品には新しいIDを払い出します。
// 1件でも不正な商品があれば何も書き込みません。
func (u *CatalogUsecase) ImportProducts(ctx context.Context, products []entity.Product) ([]entity.Product, error) {
	now := u.now().UTC()
	out := make([]entity.Product, 0, len(products))
	for i, p := range products {
		if err := ValidateProduct(p); err != nil {
			return nil, fmt.Errorf("product #%d (%s): %w", i, p.Name, err)
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Colors == nil {
			p.Colors = []string{}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		out = append(out, p)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := u.repo.Upsert(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to import products: %w", err)
	}
	return out, nil
}

// ValidateProduct は取り込み前の商品を検証します。
func ValidateProduct(p entity.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
		return fmt.Errorf("%w: price must be a non-negative number", ErrInvalidProduct)
	}
	d := p.Dimensions
	for _, v := range []float64{d.Width, d.Height, d.Depth} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: dimensions must be non-negative", ErrInvalidProduct)
		}
	}
	return nil
}
