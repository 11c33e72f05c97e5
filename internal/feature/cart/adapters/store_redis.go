// Package adapters はcartフィーチャーのストア実装を提供します。
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"storefront_backend/internal/feature/cart/usecase"
)

// maxUpdateAttempts は楽観ロックが競合し続けた場合の再試行上限です。
const maxUpdateAttempts = 32

// storeRedis はカートをRedisに有効期限なしで保存します。
type storeRedis struct {
	client *redis.Client
}

var _ usecase.Store = (*storeRedis)(nil)

// NewStoreRedis は storeRedis を生成します。
func NewStoreRedis(client *redis.Client) *storeRedis {
	return &storeRedis{client: client}
}

func (s *storeRedis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// Update は WATCH したキーを読み、MULTI/EXEC で書き戻します。
// EXEC までに他のクライアントがキーを書き換えた場合は redis.TxFailedErr となり、読み込みからやり直します。
func (s *storeRedis) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update %s: gave up after %d conflicting attempts", key, maxUpdateAttempts)
}
