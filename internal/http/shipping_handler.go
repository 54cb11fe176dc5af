package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/brechodofuturo/marketplace/internal/shipping"
	"github.com/brechodofuturo/marketplace/pkg/logger"
	"github.com/google/uuid"
)

const oauthStateCookie = "carrier_oauth_state"

type ShippingHandler struct {
	quotes  ShippingService
	oauth   CarrierAuthorizer
	timeout time.Duration
}

func NewShippingHandler(quotes ShippingService, oauth CarrierAuthorizer, timeout time.Duration) *ShippingHandler {
	return &ShippingHandler{quotes: quotes, oauth: oauth, timeout: timeout}
}

type ShippingItemDTO struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=99"`
}

type CalculateShippingRequestDTO struct {
	PostalCode string            `json:"postal_code" validate:"required"`
	Items      []ShippingItemDTO `json:"items" validate:"required,min=1,max=50,dive"`
}

// POST /api/shipping/calculate
func (h *ShippingHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CalculateShippingRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]shipping.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, shipping.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	quotes, err := h.quotes.Quote(ctx, req.PostalCode, items)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, quotes)
}

// GET /api/shipping/authorize returns the carrier consent URL. The state is
// kept in a cookie and checked on the callback.
func (h *ShippingHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/shipping",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	respondSuccess(w, http.StatusOK, map[string]string{"authorization_url": h.oauth.AuthCodeURL(state)})
}

// GET /api/shipping/callback
func (h *ShippingHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		respondError(w, http.StatusBadRequest, "authorization_denied", "Autorização recusada pela transportadora")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		respondError(w, http.StatusBadRequest, "invalid_state", "Estado de autorização inválido")
		return
	}
	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing_code", "Código de autorização ausente")
		return
	}

	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "carrier authorization failed", "error", err)
		respondError(w, http.StatusBadGateway, "carrier_authorization_failed", "Falha ao autorizar a transportadora")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/api/shipping", MaxAge: -1})
	respondSuccess(w, http.StatusOK, map[string]any{"authorized": true, "expires_at": tok.ExpiresAt})
}
