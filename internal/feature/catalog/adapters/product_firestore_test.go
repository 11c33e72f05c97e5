package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storefront_backend/internal/feature/catalog/domain/entity"
)

func TestProductFromData(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		data map[string]any
		want entity.Product
	}{
		{
			name: "complete document",
			data: map[string]any{
				"name":        "Chair",
				"price":       int64(120),
				"description": "A chair",
				"colors":      []any{"oak", "black", 3},
				"imageUrl":    "https://img/chair.png",
				"modelUrl":    "https://models/chair.glb",
				"dimensions":  map[string]any{"width": 0.5, "height": 0.9, "depth": int64(1)},
				"createdAt":   created,
				"updatedAt":   created,
			},
			want: entity.Product{
				ID: "p1", Name: "Chair", Price: 120, Description: "A chair",
				Colors: []string{"oak", "black"}, ImageURL: "https://img/chair.png", ModelURL: "https://models/chair.glb",
				Dimensions: entity.Dimensions{Width: 0.5, Height: 0.9, Depth: 1},
				CreatedAt:  created, UpdatedAt: created,
			},
		},
		{
			name: "missing fields default",
			data: map[string]any{},
			want: entity.Product{ID: "p1", Colors: []string{}},
		},
		{
			name: "wrong types default",
			data: map[string]any{"name": 42, "price": "free", "colors": "red", "dimensions": []any{1, 2, 3}},
			want: entity.Product{ID: "p1", Colors: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, productFromData("p1", tt.data))
		})
	}
}

func TestProductToData_RoundTrip(t *testing.T) {
	p := entity.Product{
		ID: "p1", Name: "Lamp", Price: 19.99, Colors: []string{"white"},
		Dimensions: entity.Dimensions{Width: 0.2, Height: 0.5, Depth: 0.2},
	}
	data := productToData(p)
	_, hasModel := data["modelUrl"]
	assert.False(t, hasModel, "empty modelUrl is omitted")

	// Firestoreから読み出した形に合わせる
	data["colors"] = []any{"white"}
	assert.Equal(t, p, productFromData("p1", data))
}
