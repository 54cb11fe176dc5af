package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/lib/pq"
)

const categoryColumns = `c.id, c.name, c.slug, c.description, c.parent_id, c.created_at, c.updated_at`

func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	query := `INSERT INTO categories (name, slug, description, parent_id)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, c.Name, c.Slug, c.Description, c.ParentID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return categoryWriteError("insert category", err)
	}
	return nil
}

func (r *Repository) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = $1`, id)
	return scanCategory(row)
}

func (r *Repository) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.slug = $1`, slug)
	return scanCategory(row)
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	query := `UPDATE categories
	          SET name = $2, slug = $3, description = $4, parent_id = $5, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.Slug, c.Description, c.ParentID).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCategoryNotFound
	}
	if err != nil {
		return categoryWriteError("update category", err)
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectAffected(res, ErrCategoryNotFound)
}

// loadCategories returns the categories of each listed product.
func loadCategories(ctx context.Context, q querier, productIDs []int64) (map[int64][]domain.Category, error) {
	out := make(map[int64][]domain.Category, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	query := `SELECT pc.product_id, ` + categoryColumns + `
	          FROM product_categories pc
	          JOIN categories c ON c.id = pc.category_id
	          WHERE pc.product_id = ANY($1)
	          ORDER BY c.name`

	rows, err := q.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("query product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var c domain.Category
		if err := rows.Scan(&productID, &c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product category: %w", err)
		}
		out[productID] = append(out[productID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

func categoryWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return ErrSlugTaken
	case isForeignKeyViolation(err):
		// parent_id points to a missing category
		return ErrCategoryNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
