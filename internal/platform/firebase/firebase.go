// Package firebase はFirebase Admin SDKの初期化とIDトークン検証を提供します。
package firebase

import (
	"context"
	"fmt"

	fb "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"storefront_backend/internal/platform/config"
)

// NewApp はサービスアカウントの認証情報でFirebaseアプリを初期化します。
// 同じアプリからAuthクライアントとFirestoreクライアントを取得します。
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*fb.App, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	var fbConfig *fb.Config
	if cfg.ProjectID != "" {
		fbConfig = &fb.Config{ProjectID: cfg.ProjectID}
	}
	app, err := fb.NewApp(ctx, fbConfig, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}
