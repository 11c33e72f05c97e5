// Package usecase implements the shopping cart business logic.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"storefront_backend/internal/feature/cart/domain/entity"
	catalog "storefront_backend/internal/feature/catalog/domain/entity"
	catalogusecase "storefront_backend/internal/feature/catalog/usecase"
)

// Store はカートを保存するキーバリューストアです。
// Goの慣例に従い、インターフェースはプロバイダー（adapters）ではなくコンシューマー（usecase）が定義します。
type Store interface {
	// Get はキーの値を返します。キーが存在しない場合は nil, nil を返します。
	Get(ctx context.Context, key string) ([]byte, error)
	// Update はキーの現在値を fn に渡し、戻り値をアトミックに書き戻します。
	// 同じキーへの並行した Update は直列化され、間に他の書き込みが入った場合は fn を再実行します。
	// fn が nil を返した場合は書き込みません。fn のエラーはそのまま返します。
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// ProductLookup はカートに追加する商品の情報を取得します。
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// CartUsecase はユーザーごとのカートを操作します。
// 操作のたびにストアから読み込み、変更があった場合だけ書き戻します。
type CartUsecase struct {
	store    Store
	products ProductLookup
}

// NewCartUsecase は CartUsecase を生成します。
func NewCartUsecase(store Store, products ProductLookup) *CartUsecase {
	return &CartUsecase{store: store, products: products}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// GetCart は保存されているカートを返します。
func (u *CartUsecase) GetCart(ctx context.Context, userID string) (entity.Cart, error) {
	data, err := u.store.Get(ctx, cartKey(userID))
	if err != nil {
		return entity.Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}
	return decodeCart(userID, data), nil
}

// AddItem は商品を1つカートに追加します。名前・価格・画像はカタログから取得します。
// color が空なら商品の最初のカラーを使います。
func (u *CartUsecase) AddItem(ctx context.Context, userID, productID, color string) (entity.Cart, error) {
	p, err := u.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalogusecase.ErrProductNotFound) {
			return entity.Cart{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
		}
		return entity.Cart{}, fmt.Errorf("failed to look up product: %w", err)
	}
	if color == "" {
		color = p.DefaultColor()
	} else if !p.HasColor(color) {
		return entity.Cart{}, fmt.Errorf("%w: %s", ErrInvalidColor, color)
	}

	item := entity.Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Color:     color,
		ImageURL:  p.ImageURL,
	}
	return u.update(ctx, userID, func(cart *entity.Cart) (bool, error) {
		cart.Add(item)
		return true, nil
	})
}

// RemoveItem は商品・カラーが一致する行を削除します。該当がなくてもエラーにしません。
func (u *CartUsecase) RemoveItem(ctx context.Context, userID, productID, color string) (entity.Cart, error) {
	return u.update(ctx, userID, func(cart *entity.Cart) (bool, error) {
		return cart.Remove(productID, color), nil
	})
}

// UpdateQuantity は行の数量を変更します。0以下なら削除します。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, userID, productID string, quantity int, color string) (entity.Cart, error) {
	return u.update(ctx, userID, func(cart *entity.Cart) (bool, error) {
		if cart.UpdateQuantity(productID, quantity, color) {
			return true, nil
		}
		if quantity <= 0 {
			return false, nil
		}
		return false, ErrItemNotFound
	})
}

// Clear はカートを空にします。
func (u *CartUsecase) Clear(ctx context.Context, userID string) error {
	_, err := u.update(ctx, userID, func(cart *entity.Cart) (bool, error) {
		cart.Clear()
		return true, nil
	})
	return err
}

// update は保存されたカートに fn を適用し、変更があれば書き戻します。
// ストアが競合を検出すると fn は最新の値で再実行されるため、fn は cart 以外の状態を変更してはいけません。
func (u *CartUsecase) update(ctx context.Context, userID string, fn func(cart *entity.Cart) (bool, error)) (entity.Cart, error) {
	var result entity.Cart
	var fnErr error
	err := u.store.Update(ctx, cartKey(userID), func(current []byte) ([]byte, error) {
		cart := decodeCart(userID, current)
		changed, err := fn(&cart)
		fnErr = err
		if err != nil {
			return nil, err
		}
		result = cart
		if !changed {
			return nil, nil
		}
		return encodeCart(cart)
	})
	if err != nil {
		if fnErr != nil {
			return entity.Cart{}, fnErr
		}
		return entity.Cart{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return result, nil
}

// decodeCart は保存データをカートに変換します。壊れたデータは警告を出して空のカートとして扱います。
func decodeCart(userID string, data []byte) entity.Cart {
	var cart entity.Cart
	if len(data) == 0 {
		return cart
	}
	if err := json.Unmarshal(data, &cart); err != nil {
		slog.Warn("stored cart is corrupted; starting empty", "user_id", userID, "error", err)
		return entity.Cart{}
	}
	return cart
}

func encodeCart(cart entity.Cart) ([]byte, error) {
	if cart.Items == nil {
		cart.Items = []entity.Item{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	return data, nil
}
