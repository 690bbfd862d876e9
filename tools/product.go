package tools

import (
	"context"

	"toolchat/storage"
)

// ProductSearcher is the catalogue lookup behind product.search.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, q storage.ProductQuery) ([]storage.Product, error)
}

type ProductSearchResponse struct {
	Status   string            `json:"status"`
	Message  string            `json:"message,omitempty"`
	Products []storage.Product `json:"products"`
	Total    int               `json:"total"`
}

func searchProducts(ctx context.Context, db ProductSearcher, args map[string]any) ProductSearchResponse {
	q := storage.ParseProductQuery(argString(args, "query"), argString(args, "category"), argFloat(args, "maxPrice"))
	products, err := db.SearchProducts(ctx, q)
	if err != nil {
		return ProductSearchResponse{Status: "error", Message: err.Error()}
	}
	return ProductSearchResponse{Status: "success", Products: products, Total: len(products)}
}

func registerProducts(reg *Registry, db ProductSearcher) error {
	return reg.Register(Tool{
		Name:        "product.search",
		Description: "Search the product catalogue (laptops by default). Understands price limits like \"under $900\", CPU families and brands.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":    map[string]any{"type": "string", "description": "What the user is looking for"},
				"category": map[string]any{"type": "string", "description": "Product category (default: Laptops)"},
				"maxPrice": map[string]any{"type": "number", "minimum": 0, "description": "Maximum price in USD"},
			},
			"required": []any{"query"},
		},
		Func: func(ctx context.Context, args map[string]any) (any, error) {
			return searchProducts(ctx, db, args), nil
		},
	})
}
