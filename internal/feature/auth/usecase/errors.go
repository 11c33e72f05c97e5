// Package usecase implements local email/password auth with rotating refresh sessions.
package usecase

import "errors"

// ユーザー
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials はユーザー不在とパスワード不一致を区別しません。
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password too short")
)

// リフレッシュセッション
var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked は失効済みトークンの再利用です。返す前にユーザーの全セッションを失効させます。
	ErrSessionRevoked      = errors.New("session has been revoked")
	ErrSessionExpired      = errors.New("session has expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
