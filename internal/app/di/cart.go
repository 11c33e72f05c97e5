package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	cartadapters "storefront_backend/internal/feature/cart/adapters"
	cartusecase "storefront_backend/internal/feature/cart/usecase"
)

// NewCartStore returns the key-value store backing carts.
// Redis is preferred; without it carts are stored in PostgreSQL.
func NewCartStore(rdb *redis.Client, db *gorm.DB) cartusecase.Store {
	if rdb != nil {
		return cartadapters.NewStoreRedis(rdb)
	}
	return cartadapters.NewStoreGorm(db)
}
