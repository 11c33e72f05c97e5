// Package router はHTTPルーティングを定義します。
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	authhandler "storefront_backend/internal/feature/auth/transport/handler"
	carthandler "storefront_backend/internal/feature/cart/transport/handler"
	cataloghandler "storefront_backend/internal/feature/catalog/transport/handler"
	placementhandler "storefront_backend/internal/feature/placement/transport/handler"
	platformhandler "storefront_backend/internal/platform/http/handler"
	"storefront_backend/internal/platform/http/middleware"
	jwtmw "storefront_backend/internal/platform/jwt"
)

// maxMultipartMemory はフレームアップロードでメモリに保持する上限です。
const maxMultipartMemory = 12 << 20

// Handlers はルーターに登録するハンドラー一式です。
// Auth は AUTH_PROVIDER=firebase の場合 nil で、/signup などは登録されません。
type Handlers struct {
	Auth      *authhandler.AuthHandler
	Product   *cataloghandler.ProductHandler
	Cart      *carthandler.CartHandler
	Placement *placementhandler.PlacementHandler
	Health    *platformhandler.HealthHandler
	Verifier  jwtmw.TokenVerifier
}

// NewRouter はginエンジンを生成し、全ルートを登録します。
func NewRouter(h *Handlers, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery(), middleware.RequestID(), cors.New(corsConfig(allowOrigins)))

	// 認証不要
	// 導通確認用
	r.GET("/healthz", h.Health.Health)
	r.HEAD("/healthz", h.Health.Health)

	if h.Auth != nil {
		// 新規ユーザー登録
		r.POST("/signup", h.Auth.Signup)
		// ログイン（JWT 発行）
		r.POST("/login", h.Auth.Login)
		r.POST("/refresh", h.Auth.Refresh)
		r.POST("/logout", h.Auth.Logout)
	}

	v1 := r.Group("/v1")
	// カタログは閲覧だけなら認証不要
	v1.GET("/products", h.Product.List)
	v1.GET("/products/:id", h.Product.Get)

	// 認証必須のルート
	auth := v1.Group("")
	auth.Use(jwtmw.AuthRequired(h.Verifier))
	{
		auth.GET("/me", authhandler.Me)

		auth.GET("/cart", h.Cart.Get)
		auth.POST("/cart/items", h.Cart.AddItem)
		auth.PATCH("/cart/items/:productId", h.Cart.UpdateQuantity)
		auth.DELETE("/cart/items/:productId", h.Cart.RemoveItem)
		auth.DELETE("/cart", h.Cart.Clear)

		placement := auth.Group("/placement")
		placement.POST("/resolve", h.Placement.Resolve)
		placement.POST("/sessions", h.Placement.CreateSession)
		placement.GET("/sessions/:id", h.Placement.GetSession)
		placement.DELETE("/sessions/:id", h.Placement.DeleteSession)
		placement.POST("/sessions/:id/auto", h.Placement.AutoPlace)
		placement.POST("/sessions/:id/manual", h.Placement.PlaceManually)
		placement.POST("/sessions/:id/capture-failure", h.Placement.ReportCaptureFailure)
		placement.PATCH("/sessions/:id/pose", h.Placement.AdjustPose)
	}

	return r
}

func corsConfig(allowOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(allowOrigins) == 0 || (len(allowOrigins) == 1 && allowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}
