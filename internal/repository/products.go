package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/lib/pq"
)

const productColumns = `p.id, p.seller_id, p.name, p.slug, p.description, p.price, p.stock, p.status,
	p.condition, p.images, p.weight_kg, p.width_cm, p.height_cm, p.length_cm, p.created_at, p.updated_at`

var productSortColumns = map[string]string{
	"price":      "p.price",
	"name":       "p.name",
	"created_at": "p.created_at",
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product, categoryIDs []int64) error {
	return r.WithTx(ctx, func(tx Tx) error {
		t := tx.(*txRepository)
		query := `INSERT INTO products (seller_id, name, slug, description, price, stock, status, condition,
	                  images, weight_kg, width_cm, height_cm, length_cm)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	              RETURNING id, created_at, updated_at`

		err := t.q.QueryRowContext(ctx, query,
			p.SellerID,
			p.Name,
			p.Slug,
			p.Description,
			p.Price,
			p.Stock,
			p.Status,
			p.Condition,
			pq.Array(nonNilStrings(p.Images)),
			p.WeightKg,
			p.WidthCm,
			p.HeightCm,
			p.LengthCm,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		return linkCategories(ctx, t.q, p.ID, categoryIDs)
	})
}

func (r *Repository) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, err
	}

	cats, err := loadCategories(ctx, r.db, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Categories = nonNilCategories(cats[id])
	return p, nil
}

// GetProductsByIDs returns the listed products keyed by id. Missing ids are
// absent from the map. Categories are not loaded.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	return queryProductsByIDs(ctx, r.db, ids, false)
}

func (r *Repository) ListProducts(ctx context.Context, f domain.ProductFilter, page domain.Page) ([]*domain.Product, int64, error) {
	where, args := productWhere(f)

	var total int64
	countQuery := `SELECT COUNT(*) FROM products p` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order := "p.created_at"
	if col, ok := productSortColumns[f.SortBy]; ok {
		order = col
	}
	dir := "ASC"
	if f.SortDesc || f.SortBy == "" {
		dir = "DESC"
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products p%s ORDER BY %s %s, p.id %s LIMIT $%d OFFSET $%d`,
		productColumns, where, order, dir, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	var ids []int64
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	cats, err := loadCategories(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range products {
		p.Categories = nonNilCategories(cats[p.ID])
	}
	return products, total, nil
}

// UpdateProduct locks the product row, lets apply change the locked copy
// and writes it back before the lock is released, so a concurrent checkout
// cannot have its stock decrement overwritten. A nil categoryIDs leaves the
// category links untouched; an empty slice removes them all.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, categoryIDs []int64, apply func(p *domain.Product) error) error {
	return r.WithTx(ctx, func(tx Tx) error {
		t := tx.(*txRepository)
		locked, err := queryProductsByIDs(ctx, t.q, []int64{id}, true)
		if err != nil {
			return err
		}
		p, ok := locked[id]
		if !ok {
			return ErrProductNotFound
		}
		if err := apply(p); err != nil {
			return err
		}

		query := `UPDATE products
	              SET name = $2, slug = $3, description = $4, price = $5, stock = $6, status = $7,
	                  condition = $8, images = $9, weight_kg = $10, width_cm = $11, height_cm = $12,
	                  length_cm = $13, updated_at = NOW()
	              WHERE id = $1`
		_, err = t.q.ExecContext(ctx, query,
			p.ID,
			p.Name,
			p.Slug,
			p.Description,
			p.Price,
			p.Stock,
			p.Status,
			p.Condition,
			pq.Array(nonNilStrings(p.Images)),
			p.WeightKg,
			p.WidthCm,
			p.HeightCm,
			p.LengthCm,
		)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}

		if categoryIDs == nil {
			return nil
		}
		if _, err := t.q.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clear product categories: %w", err)
		}
		return linkCategories(ctx, t.q, p.ID, categoryIDs)
	})
}

// AppendProductImages adds paths to the end of the image list in a single
// statement, so concurrent uploads keep each other's images.
func (r *Repository) AppendProductImages(ctx context.Context, id int64, paths []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET images = array_cat(images, $2::text[]), updated_at = NOW() WHERE id = $1`,
		id, pq.Array(nonNilStrings(paths)))
	if err != nil {
		return fmt.Errorf("append product images: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func productWhere(f domain.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		conds = append(conds, "p.status = "+next(f.Status))
	} else {
		conds = append(conds, "p.status <> 'HIDDEN'")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		ph := next("%" + q + "%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", ph, ph))
	}
	if f.CategorySlug != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM product_categories pc
			JOIN categories c ON c.id = pc.category_id
			WHERE pc.product_id = p.id AND c.slug = `+next(f.CategorySlug)+`)`)
	}
	if f.SellerID != 0 {
		conds = append(conds, "p.seller_id = "+next(f.SellerID))
	}
	if f.MinPrice != nil {
		conds = append(conds, "p.price >= "+next(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "p.price <= "+next(*f.MaxPrice))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func queryProductsByIDs(ctx context.Context, q querier, ids []int64, forUpdate bool) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id`
	if forUpdate {
		// ordered locking keeps concurrent checkouts from deadlocking
		query += ` FOR UPDATE`
	}

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func linkCategories(ctx context.Context, q querier, productID int64, categoryIDs []int64) error {
	for _, cid := range categoryIDs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			productID, cid)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrCategoryNotFound
			}
			return fmt.Errorf("link category %d: %w", cid, err)
		}
	}
	return nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var images pq.StringArray
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.Status,
		&p.Condition,
		&images,
		&p.WeightKg,
		&p.WidthCm,
		&p.HeightCm,
		&p.LengthCm,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Images = nonNilStrings(images)
	p.Categories = []domain.Category{}
	return &p, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilCategories(c []domain.Category) []domain.Category {
	if c == nil {
		return []domain.Category{}
	}
	return c
}
