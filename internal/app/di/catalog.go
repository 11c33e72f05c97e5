package di

import (
	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	catalogadapters "storefront_backend/internal/feature/catalog/adapters"
	catalogusecase "storefront_backend/internal/feature/catalog/usecase"
	"storefront_backend/internal/platform/cache"
	"storefront_backend/internal/platform/config"
)

// NewProductRepository creates the catalog repository for the configured backend.
// When Redis is available the repository is wrapped with a read-through cache.
func NewProductRepository(cfg config.CatalogConfig, fs *firestore.Client, db *gorm.DB, rdb *redis.Client) catalogusecase.ProductRepository {
	var repo catalogusecase.ProductRepository
	if cfg.Backend == config.BackendFirestore {
		repo = catalogadapters.NewProductFirestore(fs)
	} else {
		repo = catalogadapters.NewProductGorm(db)
	}
	if rdb == nil {
		return repo
	}
	return cache.NewCachingProductRepository(rdb, cfg.CacheTTL, repo, "products")
}
