package usecase

import "errors"

var (
	// ErrProductNotFound は指定IDの商品が存在しない場合に返されます。
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidProduct はインポート対象の商品データが不正な場合に返されます。
	ErrInvalidProduct = errors.New("invalid product")
)
