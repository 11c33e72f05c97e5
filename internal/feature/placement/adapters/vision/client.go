// Package vision はGoogle Cloud Vision APIの物体検出で、シーンに写っている家具などのラベルを取得します。
package vision

import (
	"context"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"storefront_backend/internal/feature/placement/domain/entity"
	"storefront_backend/internal/feature/placement/usecase"
)

const (
	// MinScore 未満の検出結果はヒントに含めません。
	MinScore = 0.5
	// MaxHints はプロンプトに含めるラベルの最大数です。
	MaxHints = 10
)

// VisionSceneDescriber はGoogle Cloud Vision APIを使用してシーン内の物体を列挙します。
type VisionSceneDescriber struct {
	client *gvision.ImageAnnotatorClient
}

// VisionSceneDescriberがSceneDescriberを実装していることをコンパイル時に検証します。
var _ usecase.SceneDescriber = (*VisionSceneDescriber)(nil)

// NewVisionSceneDescriber はADCを使用してVisionSceneDescriberの新しいインスタンスを生成します。
func NewVisionSceneDescriber(ctx context.Context) (*VisionSceneDescriber, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionSceneDescriber{client: client}, nil
}

// Close はVision APIクライアントを解放します。
func (v *VisionSceneDescriber) Close() error {
	return v.client.Close()
}

// DescribeScene は画像に写っている物体の名前を返します。
func (v *VisionSceneDescriber) DescribeScene(ctx context.Context, frame entity.Frame) ([]string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: frame.Data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: MaxHints * 2},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	return labelsFromResponse(resp)
}

// labelsFromResponse はスコアの低いもの・重複を除いたラベルを返します。
func labelsFromResponse(resp *visionpb.BatchAnnotateImagesResponse) ([]string, error) {
	if resp == nil || len(resp.Responses) == 0 {
		return nil, nil
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	seen := make(map[string]struct{})
	labels := make([]string, 0, MaxHints)
	for _, obj := range resp.Responses[0].LocalizedObjectAnnotations {
		if obj.Score < MinScore || obj.Name == "" {
			continue
		}
		if _, dup := seen[obj.Name]; dup {
			continue
		}
		seen[obj.Name] = struct{}{}
		labels = append(labels, obj.Name)
		if len(labels) == MaxHints {
			break
		}
	}
	return labels, nil
}
