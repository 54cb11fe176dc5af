package http

import (
	"context"
	"net/http"
	"time"

	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/service"
)

type UserHandler struct {
	users   UserService
	timeout time.Duration
}

func NewUserHandler(users UserService, timeout time.Duration) *UserHandler {
	return &UserHandler{users: users, timeout: timeout}
}

type AddressDTO struct {
	Street     string `json:"street" validate:"required,max=200"`
	Number     string `json:"number" validate:"required,max=20"`
	Complement string `json:"complement" validate:"max=100"`
	District   string `json:"district" validate:"required,max=100"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,len=2"`
	PostalCode string `json:"postal_code" validate:"required,min=8,max=9"`
}

func (a *AddressDTO) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Complement,
		District:   a.District,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
	}
}

type RegisterRequestDTO struct {
	Name     string      `json:"name" validate:"required,min=2,max=120"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Phone    string      `json:"phone" validate:"max=20"`
	Address  *AddressDTO `json:"address"`
}

type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequestDTO struct {
	Name    *string      `json:"name" validate:"omitempty,min=2,max=120"`
	Email   *string      `json:"email" validate:"omitempty,email"`
	Phone   *string      `json:"phone" validate:"omitempty,max=20"`
	Address *AddressDTO  `json:"address"`
	Role    *domain.Role `json:"role" validate:"omitempty,oneof=CUSTOMER ADMIN"`
}

type ChangePasswordRequestDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RegisterRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Register(ctx, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address.toDomain(),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, u)
}

// POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res)
}

// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, _ := actorFromContext(r.Context())
	u, err := h.users.Get(ctx, actor, actor.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, u)
}

// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, _ := actorFromContext(r.Context())
	page := pageFromQuery(r)
	users, total, err := h.users.List(ctx, actor, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondList(w, users, page, total)
}

// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	u, err := h.users.Get(ctx, actor, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, u)
}

// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req UpdateUserRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	actor, _ := actorFromContext(r.Context())
	u, err := h.users.Update(ctx, actor, id, service.UserUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address.toDomain(),
		Role:    req.Role,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, u)
}

// PUT /api/users/{id}/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req ChangePasswordRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	actor, _ := actorFromContext(r.Context())
	if err := h.users.ChangePassword(ctx, actor, id, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"message": "Senha alterada com sucesso"})
}

// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if err := h.users.Delete(ctx, actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}
