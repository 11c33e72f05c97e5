package entity

import "time"

// Session はリフレッシュトークン1本に対応するログインセッションです。
// ID がトークン値そのもの（64文字のhex）で、Refresh のたびに新しいセッションへ置き換わります。
type Session struct {
	ID        string     `json:"id"`
	UserID    uint       `json:"user_id"`
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// ExpiredAt は now の時点で有効期限を過ぎているかを返します。
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// ActiveAt は now の時点で失効も期限切れもしていないかを返します。
func (s *Session) ActiveAt(now time.Time) bool {
	return !s.IsRevoked() && !s.ExpiredAt(now)
}

// Revoke は失効時刻を記録します。既に失効していれば最初の時刻を保ちます。
func (s *Session) Revoke(now time.Time) {
	if s.RevokedAt != nil {
		return
	}
	t := now
	s.RevokedAt = &t
}

// RemainingTTL は有効期限までの残り時間です。期限切れなら0以下になります。
func (s *Session) RemainingTTL(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}
