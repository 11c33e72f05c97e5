// Package http は外部API呼び出し用のHTTPクライアントを提供します。
package http

import (
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout         = 5 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	// 推論APIは同一ホストへの呼び出しだけなので、ホスト単位のアイドル接続を多めに持つ
	maxIdleConnsPerHost = 16
)

// NewHTTPClient は推論API（Gemini）向けのHTTPクライアントを作成します。
// timeout はリクエスト全体の上限で、ヘッダー待ちにも同じ値を使います。
// 0以下を渡すとタイムアウトなしになるため、呼び出し元で PLACEMENT_TIMEOUT などの正の値を渡すこと。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
