package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_backend/internal/feature/cart/usecase"
)

// CartEntry は cart_entries テーブルのGORMモデルです。
type CartEntry struct {
	Key       string `gorm:"column:cart_key;primaryKey;size:191"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (CartEntry) TableName() string {
	return "cart_entries"
}

// storeGorm はRedisが使えない環境でカートをDBに保存します。
type storeGorm struct {
	db *gorm.DB
}

var _ usecase.Store = (*storeGorm)(nil)

// NewStoreGorm は storeGorm を生成します。
func NewStoreGorm(db *gorm.DB) *storeGorm {
	return &storeGorm{db: db}
}

func (s *storeGorm) Get(ctx context.Context, key string) ([]byte, error) {
	var e CartEntry
	if err := s.db.WithContext(ctx).Where("cart_key = ?", key).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return e.Data, nil
}

// errUnchanged は fn が書き込み不要と判断したときにトランザクションを巻き戻すためのものです。
var errUnchanged = errors.New("cart unchanged")

// Update は行を SELECT ... FOR UPDATE でロックしてから fn を適用します。
// 行がなければ先に空の行を作るので、初回の書き込み同士もロックで直列化されます。
func (s *storeGorm) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder := CartEntry{Key: key, Data: []byte{}, UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&placeholder).Error; err != nil {
			return err
		}

		var e CartEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("cart_key = ?", key).First(&e).Error; err != nil {
			return err
		}
		next, err := fn(e.Data)
		if err != nil {
			return err
		}
		if next == nil {
			return errUnchanged
		}
		return tx.Model(&CartEntry{}).Where("cart_key = ?", key).Updates(map[string]any{
			"data":       next,
			"updated_at": time.Now(),
		}).Error
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}
