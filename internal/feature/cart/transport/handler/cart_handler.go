// Package handler はcartフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_backend/internal/api"
	"storefront_backend/internal/feature/cart/domain/entity"
	"storefront_backend/internal/feature/cart/usecase"
	jwtmw "storefront_backend/internal/platform/jwt"
)

// CartUsecase はカート操作のユースケースを定義します。
type CartUsecase interface {
	GetCart(ctx context.Context, userID string) (entity.Cart, error)
	AddItem(ctx context.Context, userID, productID, color string) (entity.Cart, error)
	RemoveItem(ctx context.Context, userID, productID, color string) (entity.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int, color string) (entity.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// CartHandler はカート操作のHTTPリクエストを処理します。AuthRequired の後ろで使います。
type CartHandler struct {
	uc CartUsecase
}

// NewCartHandler は CartHandler を生成します。
func NewCartHandler(uc CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

// Get は現在のカートを返します。
func (h *CartHandler) Get(c *gin.Context) {
	cart, err := h.uc.GetCart(c.Request.Context(), jwtmw.UserID(c))
	h.respond(c, http.StatusOK, cart, err)
}

// AddItem は商品を1つ追加します。
func (h *CartHandler) AddItem(c *gin.Context) {
	var req api.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("add cart item validation failed", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	cart, err := h.uc.AddItem(c.Request.Context(), jwtmw.UserID(c), req.ProductID, req.Color)
	h.respond(c, http.StatusOK, cart, err)
}

// UpdateQuantity は行の数量を変更します。0以下は削除です。
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req api.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	cart, err := h.uc.UpdateQuantity(c.Request.Context(), jwtmw.UserID(c), c.Param("productId"), *req.Quantity, req.Color)
	h.respond(c, http.StatusOK, cart, err)
}

// RemoveItem は行を削除します。カラーはクエリ ?color= で指定します。
func (h *CartHandler) RemoveItem(c *gin.Context) {
	cart, err := h.uc.RemoveItem(c.Request.Context(), jwtmw.UserID(c), c.Param("productId"), c.Query("color"))
	h.respond(c, http.StatusOK, cart, err)
}

// Clear はカートを空にします。
func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.uc.Clear(c.Request.Context(), jwtmw.UserID(c)); err != nil {
		h.respond(c, 0, entity.Cart{}, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) respond(c *gin.Context, status int, cart entity.Cart, err error) {
	switch {
	case err == nil:
		c.JSON(status, toCartResponse(cart))
	case errors.Is(err, usecase.ErrUnknownProduct):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
	case errors.Is(err, usecase.ErrItemNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "cart item not found"})
	case errors.Is(err, usecase.ErrInvalidColor):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "color not available"})
	default:
		slog.Error("cart operation failed", "error", err, "user_id", jwtmw.UserID(c))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "cart unavailable", Retryable: true})
	}
}

func toCartResponse(cart entity.Cart) api.CartResponse {
	items := make([]api.CartItemResponse, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, api.CartItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Color:     it.Color,
			ImageURL:  it.ImageURL,
		})
	}
	return api.CartResponse{Items: items, ItemCount: cart.Count(), TotalPrice: cart.Total()}
}
