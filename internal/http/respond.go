package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/brechodofuturo/marketplace/internal/domain"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Error      *ErrorBody         `json:"error,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, Envelope{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, data any, page domain.Page, total int64) {
	p := domain.NewPagination(page, total)
	respondJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: &p})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// pageFromQuery reads ?page= and ?limit=; bad values fall back to defaults.
func pageFromQuery(r *http.Request) domain.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return domain.NewPage(page, limit)
}
