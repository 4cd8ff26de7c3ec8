package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/expenseflow-prototype/internal/audit"
)

// AuditLogProvider описывает контракт для чтения данных аудита.
// Используем структуру Event из пакета audit — единая модель данных.
type AuditLogProvider interface {
	FetchLogs(ctx context.Context, actorID, entityID string) ([]audit.Event, error)
}

type AuditService struct {
	repo AuditLogProvider
}

func NewAuditService(repo AuditLogProvider) *AuditService {
	return &AuditService{
		repo: repo,
	}
}

// FetchLogs запрашивает логи с фильтрацией.
// Логика фильтрации (пустые строки или конкретные ID) инкапсулирована в репозитории.
func (s *AuditService) FetchLogs(ctx context.Context, actorID, entityID string) ([]audit.Event, error) {
	logs, err := s.repo.FetchLogs(ctx, actorID, entityID)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	return logs, nil
}
