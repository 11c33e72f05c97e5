// Package entity defines the domain models for the catalog feature.
package entity

import (
	"math"
	"slices"
	"time"
)

// Dimensions は商品の外形寸法（メートル）です。
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// IsPositive は全ての寸法が正の有限値かどうかを返します。
func (d Dimensions) IsPositive() bool {
	for _, v := range []float64{d.Width, d.Height, d.Depth} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}

// Product はカタログの商品です。
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Price       float64    `json:"price"`
	Description string     `json:"description"`
	Colors      []string   `json:"colors"`
	ImageURL    string     `json:"imageUrl"`
	ModelURL    string     `json:"modelUrl,omitempty"`
	Dimensions  Dimensions `json:"dimensions"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// HasColor は color が商品のカラーバリエーションに含まれるかを返します。
func (p Product) HasColor(color string) bool {
	return slices.Contains(p.Colors, color)
}

// DefaultColor は最初のカラーを返します。カラーがなければ空文字です。
func (p Product) DefaultColor() string {
	if len(p.Colors) == 0 {
		return ""
	}
	return p.Colors[0]
}
