// Package jwtmw はBearerトークン認証のginミドルウェアとローカルJWTの発行・検証を提供します。
package jwtmw

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront_backend/internal/api"
)

const (
	// ContextUserID はginコンテキスト上の利用者IDのキーです。
	ContextUserID = "userID"
	// ContextPrincipal はginコンテキスト上のPrincipalのキーです。
	ContextPrincipal = "principal"
)

// AuthRequired returns a Gin middleware function that validates bearer tokens
// with the given verifier and restricts access to authenticated users only.
func AuthRequired(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Authorizationヘッダーを取得
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "missing bearer token"})
			return
		}

		// 2. トークンを検証
		p, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			slog.Warn("token verification failed", "error", err, "remote_addr", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid token"})
			return
		}

		// 3. 利用者情報をコンテキストに保存
		c.Set(ContextUserID, p.UserID)
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

// UserID はAuthRequiredが設定した利用者IDを返します。未認証の場合は空文字です。
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// PrincipalFrom はAuthRequiredが設定したPrincipalを返します。
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
