package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/expenseflow-prototype/internal/console/service"
	"github.com/xela07ax/expenseflow-prototype/internal/workflow"
)

type ApprovalHandler struct {
	service *service.ExpenseService
}

func NewApprovalHandler(s *service.ExpenseService) *ApprovalHandler {
	return &ApprovalHandler{service: s}
}

// List — очередь записей, ждущих решения авторизованного пользователя
// GET /v1/approvals
func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	queue, err := h.service.PendingQueue(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queue)
}

type DecideRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

// Decide фиксирует решение approve/reject по записи согласования
// POST /v1/approvals/{id}/decide
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	approverID := callerID(r)
	if approverID == "" {
		http.Error(w, "approver identity is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.Decide(r.Context(), workflow.DecisionRequest{
		RecordID:   id,
		ApproverID: approverID,
		Approve:    req.Approved,
		Comment:    req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
