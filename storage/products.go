package storage

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
}

// ProductQuery is a structured catalogue search. Empty fields do not filter.
type ProductQuery struct {
	Category     string
	MaxPrice     float64
	DescContains string
	NameContains string
}

type cpuFamily struct {
	keys  []string
	match string
}

var (
	underPrice  = regexp.MustCompile(`(?i)under \$?(\d+)`)
	knownBrands = []string{"Dell", "HP", "Lenovo", "ASUS", "Acer"}
	cpuFamilies = []cpuFamily{
		{[]string{"core i5", "intel core i5"}, "Core i5"},
		{[]string{"core i3", "intel core i3"}, "Core i3"},
		{[]string{"core i7", "intel core i7"}, "Core i7"},
		{[]string{"ryzen"}, "Ryzen"},
	}
)

// ParseProductQuery turns a free-text shopping request into a ProductQuery.
// The catalogue is laptops unless category says otherwise. "show all" lists
// the whole category; otherwise price ("under $900"), cpu family and brand are
// picked out, and when none is present the text is matched against names.
func ParseProductQuery(text, category string, maxPrice float64) ProductQuery {
	q := ProductQuery{Category: "Laptops", MaxPrice: maxPrice}
	if category != "" {
		q.Category = category
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "show all") || strings.Contains(lower, "show me all") {
		return q
	}

	narrowed := false
	if m := underPrice.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && (q.MaxPrice == 0 || v < q.MaxPrice) {
			q.MaxPrice = v
			narrowed = true
		}
	}

cpu:
	for _, family := range cpuFamilies {
		for _, key := range family.keys {
			if strings.Contains(lower, key) {
				q.DescContains = family.match
				narrowed = true
				break cpu
			}
		}
	}

	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			q.NameContains = brand
			narrowed = true
			break
		}
	}

	if !narrowed && q.MaxPrice == 0 {
		q.NameContains = strings.TrimSpace(text)
	}
	return q
}

// SearchProducts returns matching products ordered by price.
func (s *Store) SearchProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	var (
		conds []string
		args  []any
	)
	if q.Category != "" {
		conds = append(conds, "category LIKE ?")
		args = append(args, q.Category)
	}
	if q.MaxPrice > 0 {
		conds = append(conds, "price <= ?")
		args = append(args, q.MaxPrice)
	}
	if q.DescContains != "" {
		conds = append(conds, "description LIKE ?")
		args = append(args, "%"+q.DescContains+"%")
	}
	if q.NameContains != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+q.NameContains+"%")
	}

	query := `SELECT id, name, price, category, COALESCE(description, '') FROM product`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY price, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertProduct inserts p, or updates it when p.ID is set. It returns the id.
func (s *Store) UpsertProduct(ctx context.Context, p Product) (int64, error) {
	if p.ID != 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO product (id, name, price, category, description) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price,
			 category = excluded.category, description = excluded.description`,
			p.ID, p.Name, p.Price, p.Category, p.Description)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert product: %w", err)
		}
		return p.ID, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO product (name, price, category, description) VALUES (?, ?, ?, ?)`,
		p.Name, p.Price, p.Category, p.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return res.LastInsertId()
}
