package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brechodofuturo/marketplace/internal/auth"
	"github.com/brechodofuturo/marketplace/internal/domain"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  *domain.Address
}

// UserUpdate carries the fields to change; nil fields are left as they are.
type UserUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *domain.Address
	Role    *domain.Role
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type UserService struct {
	store  UserStore
	tokens *auth.TokenService
	log    *slog.Logger
}

func NewUserService(store UserStore, tokens *auth.TokenService, log *slog.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, log: log}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      in.Address,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *UserService) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.User, error) {
	if !actor.CanManage(id) {
		return nil, ErrForbidden
	}
	return s.store.GetUserByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, actor domain.Actor, page domain.Page) ([]*domain.User, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	return s.store.ListUsers(ctx, page)
}

func (s *UserService) Update(ctx context.Context, actor domain.Actor, id int64, upd UserUpdate) (*domain.User, error) {
	if !actor.CanManage(id) {
		return nil, ErrForbidden
	}
	if upd.Role != nil && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		u.Email = normalizeEmail(*upd.Email)
	}
	if upd.Phone != nil {
		u.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.Address != nil {
		u.Address = upd.Address
	}
	if upd.Role != nil {
		if !upd.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *upd.Role)
		}
		u.Role = *upd.Role
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword requires the current password unless an admin resets
// somebody else's.
func (s *UserService) ChangePassword(ctx context.Context, actor domain.Actor, id int64, current, next string) error {
	if !actor.CanManage(id) {
		return ErrForbidden
	}

	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if actor.UserID == id {
		if err := auth.CheckPassword(u.PasswordHash, current); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return ErrInvalidCredentials
			}
			return err
		}
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, id, hash)
}

func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.CanManage(id) {
		return ErrForbidden
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", id, "by", actor.UserID)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
