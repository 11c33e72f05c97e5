// Package gemini はGoogle Gemini APIを使用したAR配置の推論クライアントを提供します。
package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"storefront_backend/internal/feature/placement/domain/entity"
	"storefront_backend/internal/feature/placement/usecase"
	platformhttp "storefront_backend/internal/platform/http"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"
)

// contentGenerator は genai.Models のうち使用するメソッドだけを切り出したものです。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiPlacer はシーン画像と指示文をGeminiに送り、JSONの配置結果を受け取ります。
type GeminiPlacer struct {
	models contentGenerator
	model  string
}

// GeminiPlacerがPlacementInferrerを実装していることをコンパイル時に検証します。
var _ usecase.PlacementInferrer = (*GeminiPlacer)(nil)

// NewGeminiPlacer はGeminiPlacerの新しいインスタンスを生成します。
// apiKey が空の場合はADCでVertex AIに接続します（GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION が必要です）。
func NewGeminiPlacer(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiPlacer, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendVertexAI}
	if apiKey != "" {
		cfg = &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: platformhttp.NewHTTPClient(timeout),
		}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiPlacer(client.Models, model), nil
}

func newGeminiPlacer(models contentGenerator, model string) *GeminiPlacer {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiPlacer{models: models, model: model}
}

// InferPlacement は画像1枚と指示文で1回だけ生成を呼び出し、モデルが返したJSONをそのまま返します。
// 応答の検証は usecase 側で行います。
func (g *GeminiPlacer) InferPlacement(ctx context.Context, prompt string, frame entity.Frame) ([]byte, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(frame.Data, frame.MIMEType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   placementSchema,
		Temperature:      genai.Ptr[float32](0.2),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini API returned no content")
	}
	return []byte(text), nil
}

// placementSchema は構造化出力のスキーマです。
var placementSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"placement": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"position": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"x": {Type: genai.TypeNumber, Description: "The X coordinate for the object placement in meters."},
						"y": {Type: genai.TypeNumber, Description: "The Y coordinate for the object placement in meters."},
						"z": {Type: genai.TypeNumber, Description: "The Z coordinate for the object placement in meters."},
					},
					Required: []string{"x", "y", "z"},
				},
				"rotation": {Type: genai.TypeNumber, Description: "The Y-axis rotation in radians."},
				"confidence": {
					Type:        genai.TypeNumber,
					Description: "The confidence score of the placement from 0 to 1.",
					Minimum:     genai.Ptr(0.0),
					Maximum:     genai.Ptr(1.0),
				},
			},
			Required: []string{"position", "rotation", "confidence"},
		},
		"scale":     {Type: genai.TypeNumber, Description: "A recommended scale factor for the object."},
		"reasoning": {Type: genai.TypeString, Description: "A brief explanation for the suggested placement and scale."},
	},
	Required:         []string{"placement", "scale", "reasoning"},
	PropertyOrdering: []string{"placement", "scale", "reasoning"},
}
