package jwtmw

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderLocal はこのサービス自身が発行したトークンの発行元名です。
const ProviderLocal = "local"

// ErrInvalidToken はトークンの検証に失敗した場合に返されます。
var ErrInvalidToken = errors.New("invalid token")

// Principal は検証済みトークンから得られた利用者情報です。
type Principal struct {
	UserID   string
	Email    string
	Provider string
}

// TokenVerifier はBearerトークンを検証して利用者を特定します。
// ローカルJWTとFirebase IDトークンの両方がこのインターフェースを実装します。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// HMACVerifier はGeneratorが発行したHS256トークンを検証します。
type HMACVerifier struct {
	secret []byte
}

var _ TokenVerifier = (*HMACVerifier)(nil)

// NewHMACVerifier はHMACVerifierを生成します。
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify は署名・有効期限・subを検証します。HMAC以外の署名方式は拒否します。
func (v *HMACVerifier) Verify(_ context.Context, tokenStr string) (Principal, error) {
	if len(v.secret) == 0 {
		return Principal{}, errors.New("jwt secret is empty")
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, Provider: ProviderLocal}, nil
}
