// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront_backend/internal/feature/catalog/domain/entity"
	"storefront_backend/internal/feature/catalog/usecase"
)

// CachingProductRepository decorates a ProductRepository with Redis caching.
// Cache writes are best effort; a Redis failure never fails a read.
type CachingProductRepository struct {
	inner     usecase.ProductRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.ProductRepository = (*CachingProductRepository)(nil)

// NewCachingProductRepository decorates a ProductRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "products".
func NewCachingProductRepository(rdb *redis.Client, ttl time.Duration, inner usecase.ProductRepository, namespace string) *CachingProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "products"
	}
	return &CachingProductRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// List returns the cached product list, falling back to the inner repository.
func (c *CachingProductRepository) List(ctx context.Context) ([]entity.Product, error) {
	if c.rdb == nil {
		return c.inner.List(ctx)
	}
	key := c.listKey()

	var cached []entity.Product
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	out, err := c.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, out)
	return out, nil
}

// FindByID returns one cached product. Not-found results are not cached.
func (c *CachingProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	if c.rdb == nil {
		return c.inner.FindByID(ctx, id)
	}
	key := c.itemKey(id)

	var cached entity.Product
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, p)
	return p, nil
}

// Upsert writes through to the inner repository and invalidates the namespace.
func (c *CachingProductRepository) Upsert(ctx context.Context, products []entity.Product) error {
	if err := c.inner.Upsert(ctx, products); err != nil {
		return err
	}
	if c.rdb == nil || len(products) == 0 {
		return nil
	}
	keys := []string{c.listKey()}
	for _, p := range products {
		keys = append(keys, c.itemKey(p.ID))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("failed to invalidate product cache", "error", err)
	}
	return nil
}

// get はキャッシュを読み込みます。破損したエントリは削除してミス扱いにします。
func (c *CachingProductRepository) get(ctx context.Context, key string, dst any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil || len(b) == 0 {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *CachingProductRepository) set(ctx context.Context, key string, v any) {
	if b, err := json.Marshal(v); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
}

func (c *CachingProductRepository) listKey() string {
	return c.namespace + ":list"
}

func (c *CachingProductRepository) itemKey(id string) string {
	return fmt.Sprintf("%s:id:%s", c.namespace, escapeKey(id))
}

// escapeKey percent-encodes s so that the key separator ":" and whitespace
// never appear in the id segment. The encoding is reversible, so distinct ids
// always map to distinct keys.
func escapeKey(s string) string {
	return url.QueryEscape(s)
}
