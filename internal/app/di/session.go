package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authadapters "storefront_backend/internal/feature/auth/adapters"
	authusecase "storefront_backend/internal/feature/auth/usecase"
	"storefront_backend/internal/platform/session"
)

// refreshSessionPrefix はRedis上のリフレッシュセッションのキー接頭辞です（cart:<uid> や products: と衝突しない）。
const refreshSessionPrefix = "refresh"

// NewSessionRepository returns the refresh-session store for local auth.
// Redis keys expire with the session; without Redis the refresh_sessions table is used
// and the purge job deletes expired rows.
func NewSessionRepository(rdb *redis.Client, db *gorm.DB) authusecase.SessionRepository {
	if rdb != nil {
		return session.NewSessionRedis(rdb, refreshSessionPrefix)
	}
	return authadapters.NewSessionGorm(db)
}
