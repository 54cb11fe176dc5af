package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

const userColumns = `id, name, email, password_hash, role, phone, address, created_at, updated_at`

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	addr, err := marshalAddress(u.Address)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (name, email, password_hash, role, phone, address)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.Phone,
		addr,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *Repository) ListUsers(ctx context.Context, page domain.Page) ([]*domain.User, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	return users, total, nil
}

func (r *Repository) UpdateUser(ctx context.Context, u *domain.User) error {
	addr, err := marshalAddress(u.Address)
	if err != nil {
		return err
	}

	query := `UPDATE users
	          SET name = $2, email = $3, role = $4, phone = $5, address = $6, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query, u.ID, u.Name, u.Email, u.Role, u.Phone, addr).Scan(&u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserHasOrders
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var addr []byte
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Phone,
		&addr,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if len(addr) > 0 {
		var a domain.Address
		if err := json.Unmarshal(addr, &a); err != nil {
			return nil, fmt.Errorf("unmarshal user address: %w", err)
		}
		u.Address = &a
	}
	return &u, nil
}

func marshalAddress(a *domain.Address) (any, error) {
	if a == nil || a.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal address: %w", err)
	}
	return b, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
