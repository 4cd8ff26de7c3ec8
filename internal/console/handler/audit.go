package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/expenseflow-prototype/internal/console/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(s *service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает список событий аудита с поддержкой фильтрации
// GET /v1/audit?actor_id=...&entity_id=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	// Извлекаем фильтры из Query-параметров
	actorID := r.URL.Query().Get("actor_id")
	entityID := r.URL.Query().Get("entity_id")

	logs, err := h.service.FetchLogs(r.Context(), actorID, entityID)
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}
