package handler

import (
	"errors"
	"net/http"

	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

// writeError маппит доменные ошибки на HTTP-коды
func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrTerminalStatus):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// callerID достает ID авторизованного пользователя из контекста
func callerID(r *http.Request) string {
	if id, ok := r.Context().Value("user_id").(string); ok {
		return id
	}
	return ""
}

// callerCompany достает ID компании авторизованного пользователя
func callerCompany(r *http.Request) string {
	if id, ok := r.Context().Value("company_id").(string); ok {
		return id
	}
	return ""
}
