package adapters

import (
	"time"

	"storefront_backend/internal/feature/auth/domain/entity"
)

// SessionModel は refresh_sessions テーブルの行です。Redisがない環境でだけ使われます。
// (user_id, created_at) の複合インデックスは、上限超過時に最古のセッションを探すためのものです。
type SessionModel struct {
	ID        string     `gorm:"primaryKey;size:64"`
	UserID    uint       `gorm:"not null;index:idx_refresh_sessions_user_created,priority:1"`
	UserAgent string     `gorm:"size:512"`
	IPAddress string     `gorm:"size:45"`
	CreatedAt time.Time  `gorm:"not null;index:idx_refresh_sessions_user_created,priority:2"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	RevokedAt *time.Time `gorm:"index"`
}

func (SessionModel) TableName() string {
	return "refresh_sessions"
}

func sessionModelFromEntity(s *entity.Session) SessionModel {
	return SessionModel(*s)
}

func (m SessionModel) toEntity() *entity.Session {
	s := entity.Session(m)
	return &s
}
