package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/brechodofuturo/marketplace/internal/auth"
	"github.com/brechodofuturo/marketplace/internal/service"
	"github.com/brechodofuturo/marketplace/internal/shipping"
	"github.com/brechodofuturo/marketplace/pkg/logger"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorTable is matched top to bottom with errors.Is.
var errorTable = []errorMapping{
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found", "Usuário não encontrado"},
	{service.ErrProductNotFound, http.StatusNotFound, "product_not_found", "Produto não encontrado"},
	{service.ErrCategoryNotFound, http.StatusNotFound, "category_not_found", "Categoria não encontrada"},
	{service.ErrOrderNotFound, http.StatusNotFound, "order_not_found", "Pedido não encontrado"},
	{service.ErrReviewNotFound, http.StatusNotFound, "review_not_found", "Avaliação não encontrada"},
	{service.ErrItemNotFound, http.StatusNotFound, "cart_item_not_found", "Item não encontrado no carrinho"},

	{service.ErrEmailTaken, http.StatusConflict, "email_taken", "E-mail já cadastrado"},
	{service.ErrSlugTaken, http.StatusConflict, "slug_taken", "Já existe uma categoria com este nome"},
	{service.ErrReviewExists, http.StatusConflict, "review_exists", "Você já avaliou este produto"},
	{service.ErrUserHasOrders, http.StatusConflict, "user_has_orders", "Usuário possui pedidos e não pode ser removido"},
	{service.ErrInsufficientStock, http.StatusConflict, "insufficient_stock", "Estoque insuficiente"},
	{service.ErrPriceChanged, http.StatusConflict, "price_changed", "O preço do produto foi alterado"},
	{service.ErrProductUnavailable, http.StatusConflict, "product_unavailable", "Produto indisponível"},
	{service.ErrIllegalTransition, http.StatusConflict, "invalid_status_transition", "Mudança de status do pedido não permitida"},

	{service.ErrOwnProduct, http.StatusBadRequest, "own_product", "Você não pode comprar o seu próprio produto"},
	{service.ErrEmptyCart, http.StatusBadRequest, "empty_cart", "O carrinho está vazio"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity", "A quantidade deve ser no mínimo 1"},
	{service.ErrInvalidRating, http.StatusBadRequest, "invalid_rating", "A nota deve ser entre 1 e 5"},
	{service.ErrCategoryCycle, http.StatusBadRequest, "category_cycle", "Uma categoria não pode ser subcategoria de si mesma"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input", "Dados inválidos"},
	{auth.ErrPasswordTooLong, http.StatusBadRequest, "password_too_long", "A senha deve ter no máximo 72 bytes"},
	{shipping.ErrInvalidPostalCode, http.StatusBadRequest, "invalid_postal_code", "CEP inválido"},
	{shipping.ErrNoItems, http.StatusBadRequest, "no_items", "Informe ao menos um produto"},
	{shipping.ErrInvalidItem, http.StatusBadRequest, "invalid_quantity", "A quantidade deve ser no mínimo 1"},
	{errUnsupportedImage, http.StatusUnsupportedMediaType, "unsupported_image", "Formato de imagem não suportado"},
	{errNoFiles, http.StatusBadRequest, "no_files", "Nenhuma imagem enviada"},
	{errTooManyFiles, http.StatusBadRequest, "too_many_files", "Imagens demais em um único envio"},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "E-mail ou senha inválidos"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "Token inválido ou expirado"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden", "Acesso negado"},

	{shipping.ErrNotAuthorized, http.StatusServiceUnavailable, "carrier_not_authorized", "Integração com a transportadora não autorizada"},
	{shipping.ErrCarrierUnavailable, http.StatusServiceUnavailable, "carrier_unavailable", "Transportadora indisponível no momento"},
	{shipping.ErrTokenRefresh, http.StatusBadGateway, "carrier_token_refresh", "Falha ao renovar o acesso à transportadora"},
	{shipping.ErrCarrierRejected, http.StatusBadGateway, "carrier_rejected", "A transportadora recusou a cotação"},

	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "Tempo de resposta esgotado"},
}

// handleServiceError writes the response for an error returned by a
// service. Client errors carry the wrapped message as details; anything
// unknown is logged and reported as a 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if !errors.Is(err, m.target) {
			continue
		}
		body := &ErrorBody{Code: m.code, Message: m.message}
		if m.status < http.StatusInternalServerError && err.Error() != m.target.Error() {
			body.Details = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).WarnContext(r.Context(), "upstream failure", "error", err)
		}
		respondJSON(w, m.status, Envelope{Error: body})
		return
	}

	logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "Erro interno do servidor")
}
