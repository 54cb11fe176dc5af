package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

const reviewColumns = `r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at, r.updated_at`

func (r *Repository) CreateReview(ctx context.Context, rv *domain.Review) error {
	query := `INSERT INTO reviews (product_id, user_id, rating, comment)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, rv.ProductID, rv.UserID, rv.Rating, rv.Comment).
		Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrReviewExists
		case isForeignKeyViolation(err):
			return ErrProductNotFound
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *Repository) GetReview(ctx context.Context, id int64) (*domain.Review, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews r JOIN users u ON u.id = r.user_id WHERE r.id = $1`, id)
	return scanReview(row)
}

func (r *Repository) ListReviewsByProduct(ctx context.Context, productID int64, page domain.Page) ([]*domain.Review, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = $1`, productID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 WHERE r.product_id = $1
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT $2 OFFSET $3`,
		productID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	return reviews, total, nil
}

func (r *Repository) ReviewSummary(ctx context.Context, productID int64) (domain.ReviewSummary, error) {
	var s domain.ReviewSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM reviews WHERE product_id = $1`, productID).
		Scan(&s.Average, &s.Count)
	if err != nil {
		return s, fmt.Errorf("review summary: %w", err)
	}
	return s, nil
}

func (r *Repository) UpdateReview(ctx context.Context, rv *domain.Review) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE reviews SET rating = $2, comment = $3, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		rv.ID, rv.Rating, rv.Comment).Scan(&rv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReviewNotFound
	}
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

func (r *Repository) DeleteReview(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return expectAffected(res, ErrReviewNotFound)
}

func scanReview(row rowScanner) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return &rv, nil
}
