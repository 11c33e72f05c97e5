// Package ratelimiter は外部API呼び出しの頻度を制限します。
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type Limiter interface {
	// Wait は次の呼び出しが許可されるまで待機します。ctx が先に終了した場合はエラーを返します。
	Wait(ctx context.Context) error
}

// RateLimiter はトークンバケットで呼び出し頻度を制限します。
type RateLimiter struct {
	name    string
	limiter *rate.Limiter
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter は interval あたり limit 回まで許可する RateLimiter を生成します。
// バーストは limit 回まで許可します。limit が0以下なら制限しません。
func NewRateLimiter(name string, limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{name: name, limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := rate.Every(interval / time.Duration(limit))
	return &RateLimiter{name: name, limiter: rate.NewLimiter(every, limit)}
}

// Wait はレートリミットの上限に達していれば待機します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if r := rl.limiter.Reserve(); r.OK() {
		delay := r.Delay()
		if delay == 0 {
			return nil
		}
		r.Cancel()
		slog.Info("rate limit reached, waiting", "limiter", rl.name, "delay", delay)
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", rl.name, err)
	}
	return nil
}
