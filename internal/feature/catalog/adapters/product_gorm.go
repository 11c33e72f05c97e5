// Package adapters はcatalogフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_backend/internal/feature/catalog/domain/entity"
	"storefront_backend/internal/feature/catalog/usecase"
)

// ProductModel は products テーブルのGORMモデルです。
type ProductModel struct {
	ID          string            `gorm:"primaryKey;size:64"`
	Name        string            `gorm:"size:255;not null"`
	Price       float64           `gorm:"not null;default:0"`
	Description string            `gorm:"type:text"`
	Colors      []string          `gorm:"serializer:json"`
	ImageURL    string            `gorm:"size:1024"`
	ModelURL    string            `gorm:"size:1024"`
	Dimensions  entity.Dimensions `gorm:"embedded;embeddedPrefix:dim_"`
	CreatedAt   time.Time         `gorm:"index;not null"`
	UpdatedAt   time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (ProductModel) TableName() string {
	return "products"
}

func (m *ProductModel) toEntity() entity.Product {
	colors := m.Colors
	if colors == nil {
		colors = []string{}
	}
	return entity.Product{
		ID:          m.ID,
		Name:        m.Name,
		Price:       m.Price,
		Description: m.Description,
		Colors:      colors,
		ImageURL:    m.ImageURL,
		ModelURL:    m.ModelURL,
		Dimensions:  m.Dimensions,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func productModelFromEntity(p entity.Product) ProductModel {
	return ProductModel{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Colors:      p.Colors,
		ImageURL:    p.ImageURL,
		ModelURL:    p.ModelURL,
		Dimensions:  p.Dimensions,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// productGorm はProductRepositoryインターフェースのGORM実装です。
type productGorm struct {
	db *gorm.DB
}

var _ usecase.ProductRepository = (*productGorm)(nil)

// NewProductGorm は指定されたDB接続でproductGormの新しいインスタンスを生成します。
func NewProductGorm(db *gorm.DB) *productGorm {
	return &productGorm{db: db}
}

// List は作成日時の降順で全商品を返します。
func (r *productGorm) List(ctx context.Context) ([]entity.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Product, len(models))
	for i := range models {
		out[i] = models[i].toEntity()
	}
	return out, nil
}

func (r *productGorm) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrProductNotFound
		}
		return nil, err
	}
	p := m.toEntity()
	return &p, nil
}

// Upsert はIDの衝突時に全カラムを更新します（created_atは維持）。
func (r *productGorm) Upsert(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	models := make([]ProductModel, len(products))
	for i, p := range products {
		models[i] = productModelFromEntity(p)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "price", "description", "colors", "image_url", "model_url",
			"dim_width", "dim_height", "dim_depth", "updated_at",
		}),
	}).Create(&models).Error
}
