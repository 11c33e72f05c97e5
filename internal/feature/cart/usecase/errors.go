package usecase

import "errors"

var (
	// ErrUnknownProduct はカタログに存在しない商品を追加しようとした場合に返されます。
	ErrUnknownProduct = errors.New("unknown product")

	// ErrInvalidColor は商品にないカラーを指定した場合に返されます。
	ErrInvalidColor = errors.New("color not available for product")

	// ErrItemNotFound はカートに該当する行がない場合に返されます。
	ErrItemNotFound = errors.New("cart item not found")
)
