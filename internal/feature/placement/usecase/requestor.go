// Package usecase はAR配置フローのビジネスロジックを実装します。
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront_backend/internal/feature/placement/domain/entity"
)

const (
	// MaxImageSize はシーン画像の最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024
	// DefaultTimeout は推論呼び出しのデフォルトタイムアウトです。
	DefaultTimeout = 20 * time.Second
	// DefaultScaleMinConfidence を下回る確信度の結果はスケールを1.0に固定します。
	DefaultScaleMinConfidence = 0.7
)

// placementPrompt は推論サービスに渡す指示文です。%s に対象、%g に寸法、最後の %s にシーンのヒントが入ります。
const placementPrompt = `You are an expert interior designer and spatial computing assistant. Your task is to analyze an image of a room and determine the best position, rotation, and scale to place a virtual 3D object.

Analyze the provided scene image to understand the room's layout, existing furniture, floor, and walls.

The user wants to place a '%s' with dimensions (WxHxD): %gm x %gm x %gm.

Based on your analysis, provide the optimal 3D coordinates (position), rotation, and a scale factor. The origin (0,0,0) is at the camera's initial position.

- The position should be on a logical surface (e.g., floor for a table, wall for a shelf).
- The rotation is a single Y-axis (yaw) angle in radians that makes the object face a natural direction (e.g., a chair facing a desk).
- The scale should be 1.0 unless the room context strongly suggests the object appears too large or small, in which case you can adjust it slightly.
- Provide a confidence score from 0 to 1; give a high score only if you can clearly identify a suitable location.
- Briefly explain your reasoning.
%s`

// PlacementInferrer は画像と指示文から構造化された配置結果（JSON）を返す推論サービスです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type PlacementInferrer interface {
	InferPlacement(ctx context.Context, prompt string, frame entity.Frame) ([]byte, error)
}

// SceneDescriber は画像に写っている物体のラベルを返します。結果はプロンプトの補助情報にだけ使います。
type SceneDescriber interface {
	DescribeScene(ctx context.Context, frame entity.Frame) ([]string, error)
}

// Limiter は外部呼び出しの前に待機するレートリミッターです。
type Limiter interface {
	Wait(ctx context.Context) error
}

// RequestorOptions は Requestor の設定です。Timeout が0以下ならデフォルトが使われます。
type RequestorOptions struct {
	Timeout            time.Duration
	ScaleMinConfidence float64
}

// Requestor はシーン画像1枚と対象物の情報から1回だけ推論を呼び出し、検証済みの配置結果を返します。
type Requestor struct {
	inferrer  PlacementInferrer
	describer SceneDescriber
	limiter   Limiter
	opts      RequestorOptions
}

// NewRequestor は Requestor を生成します。describer と limiter は nil でも構いません。
func NewRequestor(inferrer PlacementInferrer, describer SceneDescriber, limiter Limiter, opts RequestorOptions) *Requestor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ScaleMinConfidence < 0 || opts.ScaleMinConfidence > 1 {
		opts.ScaleMinConfidence = DefaultScaleMinConfidence
	}
	return &Requestor{inferrer: inferrer, describer: describer, limiter: limiter, opts: opts}
}

// RequestPlacement は配置を推論します。失敗時は部分的な結果を返しません。
func (r *Requestor) RequestPlacement(ctx context.Context, req entity.PlacementRequest) (entity.PlacementResult, error) {
	if err := req.Validate(); err != nil {
		return entity.PlacementResult{}, fmt.Errorf("%w: %v", ErrInvalidPlacementRequest, err)
	}
	if len(req.SceneImage.Data) > MaxImageSize {
		return entity.PlacementResult{}, fmt.Errorf("%w: image size exceeds maximum of %d bytes", ErrInvalidPlacementRequest, MaxImageSize)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return entity.PlacementResult{}, inferenceFailure(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	prompt := buildPrompt(req, r.describe(ctx, req.SceneImage))

	start := time.Now()
	raw, err := r.inferrer.InferPlacement(ctx, prompt, req.SceneImage)
	if err != nil {
		slog.Error("placement inference failed", "object_type", req.ObjectType, "elapsed", time.Since(start), "error", err)
		return entity.PlacementResult{}, inferenceFailure(err)
	}

	result, err := decodeResult(raw)
	if err != nil {
		slog.Warn("placement result rejected", "object_type", req.ObjectType, "error", err)
		return entity.PlacementResult{}, schemaViolation(err)
	}

	if result.Confidence < r.opts.ScaleMinConfidence && result.Scale != 1 {
		slog.Info("low confidence placement, keeping scale 1.0",
			"confidence", result.Confidence, "suggested_scale", result.Scale)
		result.Scale = 1
	}

	slog.Info("placement resolved", "object_type", req.ObjectType,
		"confidence", result.Confidence, "elapsed", time.Since(start))
	return result, nil
}

// describe はシーンのヒントを取得します。失敗しても配置要求は続行します。
func (r *Requestor) describe(ctx context.Context, frame entity.Frame) []string {
	if r.describer == nil {
		return nil
	}
	labels, err := r.describer.DescribeScene(ctx, frame)
	if err != nil {
		slog.Warn("scene description failed, continuing without hints", "error", err)
		return nil
	}
	return labels
}

func buildPrompt(req entity.PlacementRequest, hints []string) string {
	var extra string
	if len(hints) > 0 {
		extra = "\nObjects already visible in the scene: " + strings.Join(hints, ", ") + ".\n"
	}
	d := req.ObjectDimensions
	return fmt.Sprintf(placementPrompt, req.ObjectType, d.Width, d.Height, d.Depth, extra)
}

// wireResult は推論サービスの応答形式です。欠落を検出するために全てポインタで受けます。
type wireResult struct {
	Placement *struct {
		Position *struct {
			X *float64 `json:"x"`
			Y *float64 `json:"y"`
			Z *float64 `json:"z"`
		} `json:"position"`
		Rotation   *float64 `json:"rotation"`
		Confidence *float64 `json:"confidence"`
	} `json:"placement"`
	Scale     *float64 `json:"scale"`
	Reasoning *string  `json:"reasoning"`
}

func decodeResult(raw []byte) (entity.PlacementResult, error) {
	raw = trimCodeFence(raw)
	if len(raw) == 0 {
		return entity.PlacementResult{}, errors.New("empty response")
	}

	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return entity.PlacementResult{}, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case w.Placement == nil:
		return entity.PlacementResult{}, errors.New("missing field: placement")
	case w.Placement.Position == nil:
		return entity.PlacementResult{}, errors.New("missing field: placement.position")
	case w.Placement.Position.X == nil || w.Placement.Position.Y == nil || w.Placement.Position.Z == nil:
		return entity.PlacementResult{}, errors.New("missing field: placement.position.{x,y,z}")
	case w.Placement.Rotation == nil:
		return entity.PlacementResult{}, errors.New("missing field: placement.rotation")
	case w.Placement.Confidence == nil:
		return entity.PlacementResult{}, errors.New("missing field: placement.confidence")
	case w.Scale == nil:
		return entity.PlacementResult{}, errors.New("missing field: scale")
	case w.Reasoning == nil:
		return entity.PlacementResult{}, errors.New("missing field: reasoning")
	}

	p := w.Placement
	result := entity.PlacementResult{
		Position:   entity.Vector3{X: *p.Position.X, Y: *p.Position.Y, Z: *p.Position.Z},
		Rotation:   *p.Rotation,
		Confidence: *p.Confidence,
		Scale:      *w.Scale,
		Reasoning:  strings.TrimSpace(*w.Reasoning),
	}
	if err := result.Validate(); err != nil {
		return entity.PlacementResult{}, err
	}
	return result, nil
}

// trimCodeFence はモデルが ```json ... ``` で囲んで返した場合に中身だけを取り出します。
func trimCodeFence(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if !bytes.HasPrefix(raw, []byte("```")) {
		return raw
	}
	raw = bytes.TrimPrefix(raw, []byte("```"))
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[i+1:]
	}
	raw = bytes.TrimSuffix(bytes.TrimSpace(raw), []byte("```"))
	return bytes.TrimSpace(raw)
}
