package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/expenseflow-prototype/internal/console/service"
	"github.com/xela07ax/expenseflow-prototype/internal/workflow"
)

type ExpenseHandler struct {
	service *service.ExpenseService
}

func NewExpenseHandler(s *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{service: s}
}

type SubmitExpenseRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// Submit регистрирует расход от имени авторизованного пользователя
// POST /v1/expenses
func (h *ExpenseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	expense, err := h.service.Submit(r.Context(), workflow.SubmitRequest{
		CompanyID:   callerCompany(r),
		SubmitterID: callerID(r),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(expense)
}

// GetCard возвращает расход вместе с журналом согласования
// GET /v1/expenses/{id}
func (h *ExpenseHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	card, err := h.service.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(card)
}

// Stalled — отчет о зависших workflow компании (мисконфигурация правил)
// GET /v1/expenses/stalled
func (h *ExpenseHandler) Stalled(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.service.Stalled(r.Context(), callerCompany(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(expenses)
}
