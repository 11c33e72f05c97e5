package di

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storefront_backend/internal/feature/placement/adapters/gemini"
	"storefront_backend/internal/feature/placement/adapters/vision"
	"storefront_backend/internal/feature/placement/domain/entity"
	placementusecase "storefront_backend/internal/feature/placement/usecase"
	"storefront_backend/internal/platform/config"
	"storefront_backend/internal/shared/ratelimiter"
)

// errInferenceUnavailable はGeminiクライアントを初期化できなかった場合に返されます。
var errInferenceUnavailable = errors.New("placement inference is not configured")

// unavailableInferrer は推論クライアントがない環境で、全ての配置要求を InferenceFailure にします。
type unavailableInferrer struct{}

func (unavailableInferrer) InferPlacement(context.Context, string, entity.Frame) ([]byte, error) {
	return nil, errInferenceUnavailable
}

// Placement はAR配置フローのユースケース一式です。
type Placement struct {
	Requestor *placementusecase.Requestor
	Sessions  *placementusecase.SessionService
	close     func() error
}

// Close はVisionクライアントなどを解放します。
func (p *Placement) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// NewPlacement はGemini（必須）とVision（任意）のクライアントを生成し、配置ユースケースを組み立てます。
// Geminiを初期化できない場合もサーバーは起動し、AI配置だけが失敗します（手動配置は使えます）。
func NewPlacement(ctx context.Context, cfg *config.Config, products placementusecase.ProductLookup) *Placement {
	pc := cfg.Placement
	p := &Placement{}

	var inferrer placementusecase.PlacementInferrer
	placer, err := gemini.NewGeminiPlacer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, pc.Timeout)
	if err != nil {
		slog.Warn("Gemini unavailable. AI placement is disabled.", "error", err)
		inferrer = unavailableInferrer{}
	} else {
		inferrer = placer
	}

	var describer placementusecase.SceneDescriber
	if cfg.Vision.Enabled {
		v, err := vision.NewVisionSceneDescriber(ctx)
		if err != nil {
			slog.Warn("Vision unavailable. Placing without scene hints.", "error", err)
		} else {
			describer = v
			p.close = v.Close
		}
	}

	limiter := ratelimiter.NewRateLimiter("placement", pc.RatePerMinute, time.Minute)

	p.Requestor = placementusecase.NewRequestor(inferrer, describer, limiter, placementusecase.RequestorOptions{
		Timeout:            pc.Timeout,
		ScaleMinConfidence: pc.ScaleMinConfidence,
	})
	p.Sessions = placementusecase.NewSessionService(p.Requestor, products, placementusecase.SessionOptions{
		InitialZ:   pc.InitialZ,
		SessionTTL: pc.SessionTTL,
		Vertical:   placementusecase.Range(pc.VerticalRange),
		YawDegrees: placementusecase.Range(pc.YawDegreesRange),
		Scale:      placementusecase.Range(pc.ScaleRange),
	})
	return p
}
