// Package handler はcatalogフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_backend/internal/api"
	"storefront_backend/internal/feature/catalog/domain/entity"
	"storefront_backend/internal/feature/catalog/usecase"
)

// CatalogUsecase は商品カタログのユースケースのインターフェースです。
type CatalogUsecase interface {
	ListProducts(ctx context.Context) ([]entity.Product, error)
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
}

// ProductHandler は商品カタログに関するHTTPリクエストを処理します。
type ProductHandler struct {
	uc CatalogUsecase
}

// NewProductHandler は新しい ProductHandler を作成します。
func NewProductHandler(uc CatalogUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// List は商品一覧を作成日時の新しい順に返します。
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.uc.ListProducts(c.Request.Context())
	if err != nil {
		slog.Error("failed to list products", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list products"})
		return
	}
	out := make([]api.ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, ToProductResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

// Get は商品を1件返します。存在しない場合は404を返します。
func (h *ProductHandler) Get(c *gin.Context) {
	id := c.Param("id")
	p, err := h.uc.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
			return
		}
		slog.Error("failed to get product", "error", err, "product_id", id)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get product"})
		return
	}
	c.JSON(http.StatusOK, ToProductResponse(*p))
}

// ToProductResponse は商品エンティティをAPIレスポンスに変換します。
func ToProductResponse(p entity.Product) api.ProductResponse {
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	return api.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Colors:      colors,
		ImageURL:    p.ImageURL,
		ModelURL:    p.ModelURL,
		Dimensions: api.DimensionsResponse{
			Width:  p.Dimensions.Width,
			Height: p.Dimensions.Height,
			Depth:  p.Dimensions.Depth,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
