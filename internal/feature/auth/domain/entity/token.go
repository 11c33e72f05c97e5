package entity

import "time"

// TokenPair はログイン・トークン更新で発行されるトークンの組です。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn はアクセストークンの有効期間です。
	ExpiresIn time.Duration
}

// ClientMeta はセッション作成時に記録するクライアント情報です。
type ClientMeta struct {
	UserAgent string
	IPAddress string
}
