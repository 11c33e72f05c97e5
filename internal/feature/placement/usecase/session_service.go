package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	catalog "storefront_backend/internal/feature/catalog/domain/entity"
	catalogusecase "storefront_backend/internal/feature/catalog/usecase"
	"storefront_backend/internal/feature/placement/domain/entity"
)

const (
	// DefaultColor は商品にカラーがない場合のマテリアル色です。
	DefaultColor = "lightgray"
	// DefaultInitialZ はプロキシの初期奥行きです。
	DefaultInitialZ = -5.0
	// DefaultSessionTTL を超えて更新のないセッションは削除されます。
	DefaultSessionTTL = 30 * time.Minute

	noDimensionsReason = "product dimensions are not registered"
)

// ProductLookup はARで表示する商品の情報を取得します。
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// PlacementRequester は配置推論を1回行います。Requestor が実装します。
type PlacementRequester interface {
	RequestPlacement(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error)
}

// FrameSource はカメラから静止画を1枚取得します。
type FrameSource interface {
	Snapshot(ctx context.Context) (entity.Frame, error)
}

// Range は手動コントロールのクランプ範囲です。
type Range struct {
	Min float64
	Max float64
}

func (r Range) clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

// SessionOptions は SessionService の設定です。
type SessionOptions struct {
	InitialZ   float64
	SessionTTL time.Duration
	Vertical   Range
	// YawDegrees は度単位の範囲です。保存時にラジアンへ変換します。
	YawDegrees Range
	Scale      Range
}

// DefaultSessionOptions は元のビューアのスライダー範囲に合わせた設定です。
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		InitialZ:   DefaultInitialZ,
		SessionTTL: DefaultSessionTTL,
		Vertical:   Range{Min: -5, Max: 5},
		YawDegrees: Range{Min: -180, Max: 180},
		Scale:      Range{Min: 0.1, Max: 3},
	}
}

// SessionService はユーザーごとのARセッションと、そこに置かれたプロキシの姿勢を管理します。
type SessionService struct {
	requester PlacementRequester
	products  ProductLookup
	store     *sessionStore
	opts      SessionOptions
	now       func() time.Time
	newID     func() string
}

// NewSessionService は SessionService を生成します。
func NewSessionService(requester PlacementRequester, products ProductLookup, opts SessionOptions) *SessionService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &SessionService{
		requester: requester,
		products:  products,
		store:     newSessionStore(),
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateSession は商品をAR表示するセッションを開始します。color が空なら商品の最初のカラーを使います。
func (s *SessionService) CreateSession(ctx context.Context, ownerID, productID, color string) (entity.Session, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalogusecase.ErrProductNotFound) {
			return entity.Session{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
		}
		return entity.Session{}, fmt.Errorf("failed to look up product: %w", err)
	}

	switch {
	case color == "":
		color = p.DefaultColor()
		if color == "" {
			color = DefaultColor
		}
	case len(p.Colors) > 0 && !p.HasColor(color):
		return entity.Session{}, fmt.Errorf("%w: %s", ErrInvalidColor, color)
	}

	now := s.now()
	sess := entity.Session{
		ID:        s.newID(),
		OwnerID:   ownerID,
		ProductID: p.ID,
		// 商品名をそのまま物体の種類として推論に渡します
		ObjectType: p.Name,
		Dimensions: entity.Dimensions{
			Width:  p.Dimensions.Width,
			Height: p.Dimensions.Height,
			Depth:  p.Dimensions.Depth,
		},
		Color:     color,
		State:     entity.StateIdle,
		Pose:      entity.InitialPose(s.opts.InitialZ),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !sess.Dimensions.IsPositive() {
		sess.AutoPlaceDisabledReason = noDimensionsReason
	}
	s.store.put(sess)

	slog.Info("placement session created", "session_id", sess.ID, "product_id", sess.ProductID, "user_id", ownerID)
	return sess.Clone(), nil
}

// GetSession はセッションの現在の状態を返します。
func (s *SessionService) GetSession(ctx context.Context, ownerID, id string) (entity.Session, error) {
	e, err := s.lookup(ownerID, id)
	if err != nil {
		return entity.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// DeleteSession はセッションを終了します。
func (s *SessionService) DeleteSession(ctx context.Context, ownerID, id string) error {
	if _, err := s.lookup(ownerID, id); err != nil {
		return err
	}
	s.store.delete(id)
	return nil
}

// PlaceManually はAIを使わずに現在の姿勢でプロキシを表示します。
func (s *SessionService) PlaceManually(ctx context.Context, ownerID, id string) (entity.Session, error) {
	return s.mutate(ownerID, id, func(sess *entity.Session) {
		sess.Visible = true
		if !sess.State.IsBusy() {
			sess.State = entity.StatePlaced
		}
	})
}

// ReportCaptureFailure はカメラが使えないことを記録し、このセッションのAI配置を無効にします。
func (s *SessionService) ReportCaptureFailure(ctx context.Context, ownerID, id, reason string) (entity.Session, error) {
	if reason == "" {
		reason = "camera unavailable"
	}
	return s.mutate(ownerID, id, func(sess *entity.Session) {
		sess.CaptureDisabled = true
		sess.LastError = reason
		if !sess.State.IsBusy() {
			sess.State = entity.StateFailed
		}
	})
}

// AdjustPose は手動コントロール1軸を変更します。他の軸には触れません。
// yaw は度で受け取り、ラジアンで保存します。値は設定された範囲にクランプされます。
func (s *SessionService) AdjustPose(ctx context.Context, ownerID, id string, control entity.Control, value float64) (entity.Session, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return entity.Session{}, fmt.Errorf("%w: value must be finite", ErrInvalidControl)
	}

	var apply func(p *entity.Pose)
	switch control {
	case entity.ControlVertical:
		v := s.opts.Vertical.clamp(value)
		apply = func(p *entity.Pose) { p.SetVertical(v) }
	case entity.ControlYaw:
		v := s.opts.YawDegrees.clamp(value) * math.Pi / 180
		apply = func(p *entity.Pose) { p.SetYaw(v) }
	case entity.ControlScale:
		v := s.opts.Scale.clamp(value)
		apply = func(p *entity.Pose) { p.SetScale(v) }
	default:
		return entity.Session{}, fmt.Errorf("%w: unknown control %q", ErrInvalidControl, control)
	}

	return s.mutate(ownerID, id, func(sess *entity.Session) {
		apply(&sess.Pose)
	})
}

// AutoPlace はフレームを1枚取得し、AI配置の結果をプロキシに適用します。
// 推論の呼び出し中はセッションのロックを保持しません。AwaitingResult 状態が多重実行を防ぎます。
// 失敗した場合、姿勢は変更されません。
func (s *SessionService) AutoPlace(ctx context.Context, ownerID, id string, src FrameSource) (entity.Session, error) {
	e, err := s.lookup(ownerID, id)
	if err != nil {
		return entity.Session{}, err
	}

	e.mu.Lock()
	switch {
	case e.session.AutoPlaceDisabledReason != "":
		e.mu.Unlock()
		return entity.Session{}, fmt.Errorf("%w: %s", ErrAutoPlaceUnavailable, e.session.AutoPlaceDisabledReason)
	case e.session.CaptureDisabled:
		e.mu.Unlock()
		return entity.Session{}, ErrCaptureDisabled
	case e.session.State.IsBusy():
		e.mu.Unlock()
		return entity.Session{}, ErrPlacementInProgress
	}
	prevState := e.session.State
	e.session.State = entity.StateCapturing
	e.session.UpdatedAt = s.now()
	objectType, dims := e.session.ObjectType, e.session.Dimensions
	e.mu.Unlock()

	frame, err := src.Snapshot(ctx)
	if errors.Is(err, ErrInvalidFrame) {
		// 入力の誤りなので状態を戻し、正しいフレームでの再試行を許可します
		e.mu.Lock()
		e.session.State = prevState
		e.session.UpdatedAt = s.now()
		e.mu.Unlock()
		return entity.Session{}, err
	}
	if err != nil {
		slog.Warn("frame capture failed, disabling AI placement", "session_id", id, "error", err)
		e.mu.Lock()
		e.session.CaptureDisabled = true
		e.session.Fail(ErrCaptureFailed.Error(), s.now())
		e.mu.Unlock()
		return entity.Session{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	e.mu.Lock()
	e.session.State = entity.StateAwaitingResult
	e.mu.Unlock()

	result, reqErr := s.requester.RequestPlacement(ctx, entity.PlacementRequest{
		SceneImage:       frame,
		ObjectType:       objectType,
		ObjectDimensions: dims,
	})

	// 呼び出し中に削除されたセッションには書き戻しません
	if !s.store.alive(id, e) {
		return entity.Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if reqErr != nil {
		e.session.Fail(failureMessage(reqErr), s.now())
		return entity.Session{}, reqErr
	}
	e.session.ApplyResult(result, s.now())
	return e.session.Clone(), nil
}

// EvictIdle は SessionTTL を超えて更新のないセッションを削除し、削除数を返します。
func (s *SessionService) EvictIdle(ctx context.Context) (int, error) {
	n := s.store.evictBefore(s.now().Add(-s.opts.SessionTTL))
	if n > 0 {
		slog.Info("evicted idle placement sessions", "count", n, "remaining", s.store.len())
	}
	return n, nil
}

func (s *SessionService) lookup(ownerID, id string) (*sessionEntry, error) {
	e, ok := s.store.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	// OwnerID は作成後に変わらないのでロックなしで読めます
	if e.session.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (s *SessionService) mutate(ownerID, id string, fn func(sess *entity.Session)) (entity.Session, error) {
	e, err := s.lookup(ownerID, id)
	if err != nil {
		return entity.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.session)
	e.session.UpdatedAt = s.now()
	return e.session.Clone(), nil
}

func failureMessage(err error) string {
	var pf *PlacementFailure
	switch {
	case errors.As(err, &pf):
		return string(pf.Kind)
	case errors.Is(err, ErrInvalidPlacementRequest):
		return "invalid_request"
	default:
		return "placement_failed"
	}
}
