package adapters

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront_backend/internal/feature/catalog/domain/entity"
	"storefront_backend/internal/feature/catalog/usecase"
)

// productsCollection は商品ドキュメントのコレクション名です。
const productsCollection = "products"

// productFirestore はProductRepositoryインターフェースのFirestore実装です。
type productFirestore struct {
	client *firestore.Client
}

var _ usecase.ProductRepository = (*productFirestore)(nil)

// NewProductFirestore は productFirestore を生成します。
func NewProductFirestore(client *firestore.Client) *productFirestore {
	return &productFirestore{client: client}
}

// List は createdAt の降順で全商品を返します。
func (r *productFirestore) List(ctx context.Context) ([]entity.Product, error) {
	docs, err := r.client.Collection(productsCollection).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	out := make([]entity.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, productFromData(d.Ref.ID, d.Data()))
	}
	return out, nil
}

func (r *productFirestore) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	doc, err := r.client.Collection(productsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, usecase.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	p := productFromData(doc.Ref.ID, doc.Data())
	return &p, nil
}

// Upsert は BulkWriter で商品ドキュメントを上書きします。
func (r *productFirestore) Upsert(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(products))
	for _, p := range products {
		job, err := bw.Set(r.client.Collection(productsCollection).Doc(p.ID), productToData(p))
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue product %s: %w", p.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to write product %s: %w", products[i].ID, err)
		}
	}
	return nil
}

func productToData(p entity.Product) map[string]any {
	data := map[string]any{
		"name":        p.Name,
		"price":       p.Price,
		"description": p.Description,
		"colors":      p.Colors,
		"imageUrl":    p.ImageURL,
		"dimensions": map[string]any{
			"width":  p.Dimensions.Width,
			"height": p.Dimensions.Height,
			"depth":  p.Dimensions.Depth,
		},
		"createdAt": p.CreatedAt,
		"updatedAt": p.UpdatedAt,
	}
	if p.ModelURL != "" {
		data["modelUrl"] = p.ModelURL
	}
	return data
}

// productFromData はドキュメントを商品に変換します。欠けているフィールドはゼロ値になります。
func productFromData(id string, data map[string]any) entity.Product {
	p := entity.Product{
		ID:          id,
		Name:        asString(data["name"]),
		Price:       asFloat(data["price"]),
		Description: asString(data["description"]),
		Colors:      []string{},
		ImageURL:    asString(data["imageUrl"]),
		ModelURL:    asString(data["modelUrl"]),
		CreatedAt:   asTime(data["createdAt"]),
		UpdatedAt:   asTime(data["updatedAt"]),
	}
	if colors, ok := data["colors"].([]any); ok {
		for _, c := range colors {
			if s, ok := c.(string); ok {
				p.Colors = append(p.Colors, s)
			}
		}
	}
	if dims, ok := data["dimensions"].(map[string]any); ok {
		p.Dimensions = entity.Dimensions{
			Width:  asFloat(dims["width"]),
			Height: asFloat(dims["height"]),
			Depth:  asFloat(dims["depth"]),
		}
	}
	return p
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Firestoreの数値は整数ならint64、小数ならfloat64で返る
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
