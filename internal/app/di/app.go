// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/iterator"
	"gorm.io/gorm"

	"storefront_backend/internal/app/router"
	authadapters "storefront_backend/internal/feature/auth/adapters"
	authentity "storefront_backend/internal/feature/auth/domain/entity"
	authhandler "storefront_backend/internal/feature/auth/transport/handler"
	authusecase "storefront_backend/internal/feature/auth/usecase"
	cartadapters "storefront_backend/internal/feature/cart/adapters"
	carthandler "storefront_backend/internal/feature/cart/transport/handler"
	cartusecase "storefront_backend/internal/feature/cart/usecase"
	catalogadapters "storefront_backend/internal/feature/catalog/adapters"
	cataloghandler "storefront_backend/internal/feature/catalog/transport/handler"
	catalogusecase "storefront_backend/internal/feature/catalog/usecase"
	placementhandler "storefront_backend/internal/feature/placement/transport/handler"
	"storefront_backend/internal/platform/config"
	platformdb "storefront_backend/internal/platform/db"
	platformfirebase "storefront_backend/internal/platform/firebase"
	platformhandler "storefront_backend/internal/platform/http/handler"
	jwtmw "storefront_backend/internal/platform/jwt"
	platformredis "storefront_backend/internal/platform/redis"
	"storefront_backend/internal/platform/scheduler"
)

// App は起動に必要なコンポーネント一式です。cmd/server が Handlers からルーターを作り、Jobs をスケジューラに渡します。
type App struct {
	Handlers *router.Handlers
	Jobs     []scheduler.Job
	Catalog  *catalogusecase.CatalogUsecase
	closers  []func() error
}

// Close は外部接続を逆順に解放します。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Models はマイグレーション対象のGORMモデルです。
func Models() []any {
	return []any{
		&authentity.User{},
		&authadapters.SessionModel{},
		&catalogadapters.ProductModel{},
		&cartadapters.CartEntry{},
	}
}

// Build は設定に従って全コンポーネントを組み立てます。
//   - Redis: 利用できなければキャッシュなしで起動し、セッション・カートはDBに保存する
//   - AUTH_PROVIDER: local（JWT + bcrypt）または firebase（IDトークン検証）
//   - CATALOG_BACKEND: postgres または firestore
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// Redis
	var rdb *redis.Client
	if tmp, rerr := platformredis.NewRedisClient(cfg.Redis); rerr != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", rerr)
	} else {
		rdb = tmp
		a.closers = append(a.closers, rdb.Close)
	}

	// db
	var db *gorm.DB
	if needsDB(cfg, rdb) {
		db, err = platformdb.OpenDB(cfg.Database, Models()...)
		if err != nil {
			return nil, err
		}
		if sqlDB, derr := db.DB(); derr == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
	}

	// Firebase
	var verifier jwtmw.TokenVerifier
	var fs *firestore.Client
	if cfg.UsesFirebase() {
		fbApp, ferr := platformfirebase.NewApp(ctx, cfg.Firebase)
		if ferr != nil {
			return nil, ferr
		}
		if cfg.Auth.Provider == config.AuthProviderFirebase {
			authClient, aerr := fbApp.Auth(ctx)
			if aerr != nil {
				return nil, fmt.Errorf("failed to create firebase auth client: %w", aerr)
			}
			verifier = platformfirebase.NewIDTokenVerifier(authClient)
		}
		if cfg.Catalog.Backend == config.BackendFirestore {
			fs, err = fbApp.Firestore(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create firestore client: %w", err)
			}
			a.closers = append(a.closers, fs.Close)
		}
	}

	// Repository / Usecase
	products := NewProductRepository(cfg.Catalog, fs, db, rdb)
	a.Catalog = catalogusecase.NewCatalogUsecase(products)
	cartUC := cartusecase.NewCartUsecase(NewCartStore(rdb, db), a.Catalog)
	placement := NewPlacement(ctx, cfg, a.Catalog)
	a.closers = append(a.closers, placement.Close)

	handlers := &router.Handlers{
		Product:   cataloghandler.NewProductHandler(a.Catalog),
		Cart:      carthandler.NewCartHandler(cartUC),
		Placement: placementhandler.NewPlacementHandler(placement.Sessions, placement.Requestor),
		Health:    platformhandler.NewHealthHandler(healthChecks(rdb, db, fs)),
	}

	a.Jobs = append(a.Jobs, scheduler.Job{
		Name:    "evict-placement-sessions",
		Spec:    "@every 1m",
		Timeout: 10 * time.Second,
		Run: func(ctx context.Context) error {
			_, err := placement.Sessions.EvictIdle(ctx)
			return err
		},
	})

	if cfg.Auth.Provider == config.AuthProviderLocal {
		jwtGen := jwtmw.NewGenerator(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
		authUC := authusecase.NewAuthUsecase(
			authadapters.NewUserGorm(db),
			NewSessionRepository(rdb, db),
			jwtGen,
			authusecase.Options{RefreshTTL: cfg.Auth.RefreshTTL, MaxSessions: cfg.Auth.MaxSessions},
		)
		handlers.Auth = authhandler.NewAuthHandler(authUC)
		verifier = jwtmw.NewHMACVerifier(cfg.Auth.JWTSecret)

		a.Jobs = append(a.Jobs, scheduler.Job{
			Name:    "purge-expired-sessions",
			Spec:    "0 0 * * * *",
			Timeout: time.Minute,
			Run: func(ctx context.Context) error {
				n, err := authUC.PurgeExpiredSessions(ctx)
				if err == nil && n > 0 {
					slog.Info("purged expired refresh sessions", "count", n)
				}
				return err
			},
		})
	}
	handlers.Verifier = verifier

	a.Handlers = handlers
	return a, nil
}

// needsDB はPostgreSQL接続が必要かどうかを返します。
// ローカル認証・postgresカタログ・Redisなしのセッション/カートのいずれかで必要です。
func needsDB(cfg *config.Config, rdb *redis.Client) bool {
	return cfg.Auth.Provider == config.AuthProviderLocal ||
		cfg.Catalog.Backend == config.BackendPostgres ||
		rdb == nil
}

func healthChecks(rdb *redis.Client, db *gorm.DB, fs *firestore.Client) map[string]platformhandler.Checker {
	checks := map[string]platformhandler.Checker{"redis": nil, "database": nil}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if fs != nil {
		checks["firestore"] = func(ctx context.Context) error {
			_, err := fs.Collections(ctx).Next()
			if err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}
	}
	return checks
}
