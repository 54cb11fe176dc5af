package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

// The carrier token lives in a single row with id 1.

func (r *Repository) GetCarrierToken(ctx context.Context) (*domain.CarrierToken, error) {
	var t domain.CarrierToken
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, updated_at FROM carrier_tokens WHERE id = 1`).
		Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query carrier token: %w", err)
	}
	return &t, nil
}

func (r *Repository) SaveCarrierToken(ctx context.Context, t *domain.CarrierToken) error {
	query := `INSERT INTO carrier_tokens (id, access_token, refresh_token, expires_at, updated_at)
	          VALUES (1, $1, $2, $3, NOW())
	          ON CONFLICT (id) DO UPDATE
	          SET access_token = EXCLUDED.access_token,
	              refresh_token = EXCLUDED.refresh_token,
	              expires_at = EXCLUDED.expires_at,
	              updated_at = NOW()
	          RETURNING updated_at`

	if err := r.db.QueryRowContext(ctx, query, t.AccessToken, t.RefreshToken, t.ExpiresAt).Scan(&t.UpdatedAt); err != nil {
		return fmt.Errorf("save carrier token: %w", err)
	}
	return nil
}
