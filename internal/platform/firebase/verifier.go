package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	jwtmw "storefront_backend/internal/platform/jwt"
)

// ProviderFirebase はFirebase IDトークンで認証された利用者の発行元名です。
const ProviderFirebase = "firebase"

// idTokenVerifier は *auth.Client のうち必要なメソッドだけを表します。
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// IDTokenVerifier はFirebase IDトークンを検証し、UIDを利用者IDとして返します。
type IDTokenVerifier struct {
	client idTokenVerifier
}

var _ jwtmw.TokenVerifier = (*IDTokenVerifier)(nil)

// NewIDTokenVerifier は IDTokenVerifier を生成します。通常 client には app.Auth の結果を渡します。
func NewIDTokenVerifier(client idTokenVerifier) *IDTokenVerifier {
	return &IDTokenVerifier{client: client}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (jwtmw.Principal, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return jwtmw.Principal{}, fmt.Errorf("%w: %v", jwtmw.ErrInvalidToken, err)
	}
	if decoded.UID == "" {
		return jwtmw.Principal{}, fmt.Errorf("%w: missing uid", jwtmw.ErrInvalidToken)
	}
	p := jwtmw.Principal{UserID: decoded.UID, Provider: ProviderFirebase}
	if email, ok := decoded.Claims["email"].(string); ok {
		p.Email = email
	}
	return p, nil
}
