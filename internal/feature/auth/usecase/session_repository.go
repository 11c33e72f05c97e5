package usecase

import (
	"context"

	"storefront_backend/internal/feature/auth/domain/entity"
)

// SessionRepository はリフレッシュセッションの保存先です。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
// 実装は platform/session（Redis）と adapters.sessionGorm（PostgreSQL）の2つで、app/di が選びます。
type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error

	// FindByID は失効済みでも期限内なら返します。トークン再利用の検知に使うためです。
	// 見つからなければ ErrSessionNotFound。
	FindByID(ctx context.Context, id string) (*entity.Session, error)

	// FindByUserID は有効なセッションを古い順に返します。
	FindByUserID(ctx context.Context, userID uint) ([]*entity.Session, error)

	// Revoke は有効なセッションだけを失効させます。既に失効していれば ErrSessionRevoked、
	// 見つからなければ ErrSessionNotFound。同じセッションへの並行した Revoke は1つだけが成功します。
	Revoke(ctx context.Context, id string) error
	RevokeAllByUserID(ctx context.Context, userID uint) error

	// DeleteExpired は期限切れの後始末をして件数を返します。purge-expired-sessions ジョブから呼ばれます。
	DeleteExpired(ctx context.Context) (int64, error)

	// CountByUserID と DeleteOldestByUserID は AUTH_MAX_SESSIONS の適用に使います。
	CountByUserID(ctx context.Context, userID uint) (int64, error)
	DeleteOldestByUserID(ctx context.Context, userID uint) error
}
