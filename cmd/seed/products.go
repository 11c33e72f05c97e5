package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"storefront_backend/internal/feature/catalog/domain/entity"
)

// maxParallelReads は同時に読み込むファイル数の上限です。
const maxParallelReads = 4

// productFile は商品定義YAMLのトップレベルです。
//
//	products:
//	  - id: chair-oak
//	    name: Oak Chair
//	    price: 129.0
//	    colors: [natural, walnut]
//	    dimensions: {width: 0.45, height: 0.9, depth: 0.5}
type productFile struct {
	Products []productDoc `yaml:"products"`
}

type productDoc struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Price       float64  `yaml:"price"`
	Description string   `yaml:"description"`
	Colors      []string `yaml:"colors"`
	ImageURL    string   `yaml:"imageUrl"`
	ModelURL    string   `yaml:"modelUrl"`
	Dimensions  struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
		Depth  float64 `yaml:"depth"`
	} `yaml:"dimensions"`
}

func (d productDoc) toEntity() entity.Product {
	return entity.Product{
		ID:          d.ID,
		Name:        d.Name,
		Price:       d.Price,
		Description: d.Description,
		Colors:      d.Colors,
		ImageURL:    d.ImageURL,
		ModelURL:    d.ModelURL,
		Dimensions: entity.Dimensions{
			Width:  d.Dimensions.Width,
			Height: d.Dimensions.Height,
			Depth:  d.Dimensions.Depth,
		},
	}
}

// decodeProducts は1ファイル分のYAMLを商品に変換します。未知のキーはエラーです。
func decodeProducts(r io.Reader) ([]entity.Product, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f productFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]entity.Product, 0, len(f.Products))
	for _, d := range f.Products {
		out = append(out, d.toEntity())
	}
	return out, nil
}

// loadProducts は paths を並列に読み込み、引数の順序を保って結合します。
// 同じIDが複数回現れた場合はエラーです。
func loadProducts(ctx context.Context, paths []string) ([]entity.Product, error) {
	results := make([][]entity.Product, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			products, err := decodeProducts(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []entity.Product
	seen := map[string]bool{}
	for _, products := range results {
		for _, p := range products {
			if p.ID != "" {
				if seen[p.ID] {
					return nil, fmt.Errorf("duplicate product id %q", p.ID)
				}
				seen[p.ID] = true
			}
			all = append(all, p)
		}
	}
	return all, nil
}
