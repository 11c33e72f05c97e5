// Package entity defines the domain models for the AR placement feature.
package entity

import (
	"errors"
	"math"
	"strings"
)

// Frame はカメラから取得した静止画1枚です。
type Frame struct {
	Data     []byte
	MIMEType string
}

// IsEmpty は画像データが空かどうかを返します。
func (f Frame) IsEmpty() bool {
	return len(f.Data) == 0
}

// Dimensions は配置対象の外形寸法（メートル）です。
type Dimensions struct {
	Width  float64
	Height float64
	Depth  float64
}

// IsPositive は全ての寸法が正の有限値かどうかを返します。寸法が分からない商品はAI配置できません。
func (d Dimensions) IsPositive() bool {
	return isFinite(d.Width) && d.Width > 0 &&
		isFinite(d.Height) && d.Height > 0 &&
		isFinite(d.Depth) && d.Depth > 0
}

// Vector3 は3次元座標です。原点はビューアの初期位置です。
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// IsFinite は全成分が有限値かどうかを返します。
func (v Vector3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// PlacementRequest は推論サービスに送る1回分の入力です。保存はされません。
type PlacementRequest struct {
	SceneImage       Frame
	ObjectType       string
	ObjectDimensions Dimensions
}

// Validate は外部呼び出しの前に入力を検証します。
func (r PlacementRequest) Validate() error {
	if r.SceneImage.IsEmpty() {
		return errors.New("scene image is empty")
	}
	if strings.TrimSpace(r.ObjectType) == "" {
		return errors.New("object type is required")
	}
	if !r.ObjectDimensions.IsPositive() {
		return errors.New("object dimensions must be positive finite numbers")
	}
	return nil
}

// PlacementResult はAIが提案した配置です。Rotation はY軸（ヨー）回転のラジアンです。
type PlacementResult struct {
	Position   Vector3
	Rotation   float64
	Confidence float64
	Scale      float64
	Reasoning  string
}

// Validate は結果が契約範囲内にあるかを検証します。値を丸めることはしません。
func (r PlacementResult) Validate() error {
	if !r.Position.IsFinite() {
		return errors.New("position must be finite")
	}
	if !isFinite(r.Rotation) {
		return errors.New("rotation must be finite")
	}
	if !isFinite(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return errors.New("confidence must be within [0,1]")
	}
	if !isFinite(r.Scale) || r.Scale <= 0 {
		return errors.New("scale must be a positive finite number")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
