// Package middleware はルーター共通のginミドルウェアを提供します。
package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID はリクエストIDを受け渡すヘッダー名です。
	HeaderRequestID = "X-Request-Id"
	// ContextRequestID はginコンテキスト上のリクエストIDのキーです。
	ContextRequestID = "request_id"
)

type requestIDKey struct{}

// RequestID は全リクエストにリクエストIDを付与し、完了時にアクセスログを出力します。
//   - X-Request-Id ヘッダーがあればそれを使い、なければ新規発行する
//   - ginコンテキストとcontext.Contextの両方に保存する
//   - レスポンスヘッダーにも同じIDを返す
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}

		c.Set(ContextRequestID, rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, rid))
		c.Writer.Header().Set(HeaderRequestID, rid)

		start := time.Now()
		c.Next()

		slog.Info("request",
			"request_id", rid,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// RequestIDFrom はcontext.ContextからリクエストIDを取り出します。
func RequestIDFrom(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}
