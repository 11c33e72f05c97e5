// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker は依存先（Redis、DBなど）の疎通を確認する関数です。
type Checker func(ctx context.Context) error

// HealthHandler は /healthz を処理します。
type HealthHandler struct {
	checks map[string]Checker
}

// NewHealthHandler はHealthHandlerを生成します。checks は名前ごとの疎通確認で、nilの値は "disabled" として報告されます。
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	if checks == nil {
		checks = map[string]Checker{}
	}
	return &HealthHandler{checks: checks}
}

// Health はサービスヘルスチェック用の /healthz エンドポイントを処理します。
// 依存先がダウンしていてもプロセス自体は稼働しているため200を返し、詳細は本文で伝えます。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
		return
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
		return
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]string, len(names))
	status := "ok"
	for _, name := range names {
		check := h.checks[name]
		if check == nil {
			deps[name] = "disabled"
			continue
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			deps[name] = "down"
			status = "degraded"
			continue
		}
		deps[name] = "up"
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "dependencies": deps})
}
