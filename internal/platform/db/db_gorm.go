// Package db はGORMによるPostgreSQL接続を提供します。
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storefront_backend/internal/platform/config"
)

// connectTimeout はDB接続リトライの上限時間です。
const connectTimeout = 60 * time.Second

// retryInterval は接続リトライの間隔です。テストから短縮できるよう変数にしています。
var retryInterval = 3 * time.Second

// Opener はDSNからgorm.DBを開く関数です。
type Opener func(dsn string) (*gorm.DB, error)

// BuildDSN は接続設定からPostgreSQLのDSN文字列を生成します。
// InstanceName が設定されている場合はCloud SQLのUnixソケット接続になります。
func BuildDSN(cfg config.DatabaseConfig) string {
	host := cfg.Host
	port := cfg.Port
	if cfg.InstanceName != "" {
		host = "/cloudsql/" + cfg.InstanceName
		port = ""
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s", host, cfg.User, cfg.Password, cfg.Name)
	if port != "" {
		dsn += " port=" + port
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return dsn + " sslmode=" + sslmode + " TimeZone=UTC"
}

// ConnectWithRetry はtimeoutに達するまで接続をリトライします。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err)
		time.Sleep(retryInterval)
	}
}

func openPostgres(dsn string) (*gorm.DB, error) {
	// TranslateError: 一意制約違反をgorm.ErrDuplicatedKeyに変換する
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// OpenDB はPostgreSQLに接続し、RunMigrations が有効なら指定モデルをマイグレーションします。
func OpenDB(cfg config.DatabaseConfig, models ...any) (*gorm.DB, error) {
	db, err := ConnectWithRetry(BuildDSN(cfg), connectTimeout, openPostgres)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		slog.Info("database migrated", "models", len(models))
	}
	return db, nil
}
