package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storefront_backend/internal/feature/auth/domain/entity"

	"golang.org/x/crypto/bcrypt"
)

const (
	// minPasswordLength はパスワードの最低文字数を定義します。
	minPasswordLength = 8

	// refreshTokenBytes はリフレッシュトークンのバイト長です（hexで64文字）。
	refreshTokenBytes = 32
)

// dummyHash はユーザーが存在しない場合にもbcrypt比較を行うためのハッシュです。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserRepository はユーザーエンティティの永続化層を抽象化します。
// Goの慣例に従い、インターフェースはプロバイダー（adapters）ではなくコンシューマー（usecase）が定義します。
type UserRepository interface {
	// Create は新しいユーザーをストレージに永続化します。
	// 同じメールアドレスのユーザーが既に存在する場合、ErrEmailAlreadyExistsを返します。
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail は指定されたメールアドレスに一致するユーザーを取得します。
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID は指定されたIDに一致するユーザーを取得します。
	FindByID(ctx context.Context, id uint) (*entity.User, error)
}

// JWTGenerator はアクセストークン生成のインターフェースを定義します。
type JWTGenerator interface {
	GenerateToken(userID uint, email string) (string, error)
	Expiration() time.Duration
}

// Options はセッション管理の設定です。
type Options struct {
	RefreshTTL  time.Duration
	MaxSessions int
}

// authUsecase は認証ビジネスロジックを実装します。
type authUsecase struct {
	users        UserRepository
	sessions     SessionRepository
	jwtGenerator JWTGenerator
	opts         Options
	now          func() time.Time
}

// NewAuthUsecase はauthUsecaseの新しいインスタンスを生成します。
func NewAuthUsecase(users UserRepository, sessions SessionRepository, jwtGenerator JWTGenerator, opts Options) *authUsecase {
	return &authUsecase{
		users:        users,
		sessions:     sessions,
		jwtGenerator: jwtGenerator,
		opts:         opts,
		now:          time.Now,
	}
}

// validatePassword はパスワードがセキュリティ要件を満たしているかチェックします。
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, minPasswordLength)
	}
	return nil
}

// Signup はハッシュ化されたパスワードで新規ユーザーを登録します。
func (u *authUsecase) Signup(ctx context.Context, email, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user := &entity.User{Email: email, Password: string(hashed)}
	return u.users.Create(ctx, user)
}

// Login はユーザーを認証し、アクセストークンとリフレッシュトークンを発行します。
// タイミング攻撃を防止するため、ユーザーが存在しない場合でもbcrypt比較を実行します。
func (u *authUsecase) Login(ctx context.Context, email, password string, meta entity.ClientMeta) (entity.TokenPair, error) {
	user, err := u.users.FindByEmail(ctx, email)

	passwordHash := dummyHash
	if err == nil {
		passwordHash = user.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))

	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return entity.TokenPair{}, fmt.Errorf("failed to find user: %w", err)
	}
	if err != nil || compareErr != nil {
		return entity.TokenPair{}, ErrInvalidCredentials
	}

	return u.issueTokens(ctx, user, meta)
}

// Refresh はリフレッシュトークンをローテーションし、新しいトークンの組を返します。
// 失効済みトークンの再利用を検知した場合、そのユーザーの全セッションを失効させます。
func (u *authUsecase) Refresh(ctx context.Context, refreshToken string, meta entity.ClientMeta) (entity.TokenPair, error) {
	if !isWellFormedRefreshToken(refreshToken) {
		return entity.TokenPair{}, ErrInvalidRefreshToken
	}

	session, err := u.sessions.FindByID(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return entity.TokenPair{}, ErrInvalidRefreshToken
		}
		return entity.TokenPair{}, fmt.Errorf("failed to find session: %w", err)
	}
	if session.IsRevoked() {
		return entity.TokenPair{}, u.revokeOnReuse(ctx, session.UserID)
	}
	if session.ExpiredAt(u.now()) {
		return entity.TokenPair{}, ErrSessionExpired
	}

	user, err := u.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return entity.TokenPair{}, ErrInvalidRefreshToken
		}
		return entity.TokenPair{}, fmt.Errorf("failed to find user: %w", err)
	}

	// 同じトークンで並行してローテーションした場合、失効に成功するのは1つだけです。負けた側は再利用として扱います。
	if err := u.sessions.Revoke(ctx, session.ID); err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			return entity.TokenPair{}, u.revokeOnReuse(ctx, session.UserID)
		}
		return entity.TokenPair{}, fmt.Errorf("failed to revoke session: %w", err)
	}
	return u.issueTokens(ctx, user, meta)
}

// revokeOnReuse は失効済みトークンの再利用を検知したときにユーザーの全セッションを失効させ、ErrSessionRevoked を返します。
func (u *authUsecase) revokeOnReuse(ctx context.Context, userID uint) error {
	slog.Warn("revoked refresh token reused; revoking all sessions", "user_id", userID)
	if err := u.sessions.RevokeAllByUserID(ctx, userID); err != nil {
		slog.Error("failed to revoke sessions", "error", err, "user_id", userID)
	}
	return ErrSessionRevoked
}

// Logout はリフレッシュトークンのセッションを失効させます。存在しない・失効済みのセッションは成功扱いです。
func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	if !isWellFormedRefreshToken(refreshToken) {
		return ErrInvalidRefreshToken
	}
	err := u.sessions.Revoke(ctx, refreshToken)
	if err != nil && !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionRevoked) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions は期限切れセッションを削除します。スケジューラーから呼ばれます。
func (u *authUsecase) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return u.sessions.DeleteExpired(ctx)
}

// issueTokens はセッション上限を適用したうえで新しいセッションとアクセストークンを発行します。
func (u *authUsecase) issueTokens(ctx context.Context, user *entity.User, meta entity.ClientMeta) (entity.TokenPair, error) {
	if u.opts.MaxSessions > 0 {
		count, err := u.sessions.CountByUserID(ctx, user.ID)
		if err != nil {
			return entity.TokenPair{}, fmt.Errorf("failed to count sessions: %w", err)
		}
		for ; count >= int64(u.opts.MaxSessions); count-- {
			if err := u.sessions.DeleteOldestByUserID(ctx, user.ID); err != nil {
				return entity.TokenPair{}, fmt.Errorf("failed to evict session: %w", err)
			}
		}
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return entity.TokenPair{}, err
	}
	now := u.now()
	session := &entity.Session{
		ID:        refreshToken,
		UserID:    user.ID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: now,
		ExpiresAt: now.Add(u.opts.RefreshTTL),
	}
	if err := u.sessions.Create(ctx, session); err != nil {
		return entity.TokenPair{}, fmt.Errorf("failed to create session: %w", err)
	}

	accessToken, err := u.jwtGenerator.GenerateToken(user.ID, user.Email)
	if err != nil {
		return entity.TokenPair{}, fmt.Errorf("failed to generate token: %w", err)
	}

	return entity.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    u.jwtGenerator.Expiration(),
	}, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func isWellFormedRefreshToken(token string) bool {
	if len(token) != refreshTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
