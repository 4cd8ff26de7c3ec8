package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/expenseflow-prototype/internal/audit"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
	"github.com/xela07ax/expenseflow-prototype/internal/infra"
	"go.uber.org/zap"
)

// RuleRepository описывает требования сервиса к хранилищу правил
type RuleRepository interface {
	GetRuleByID(ctx context.Context, id string) (*domain.ApprovalRule, error)
	ListRulesByCompany(ctx context.Context, companyID string) ([]domain.ApprovalRule, error)
	CreateRule(ctx context.Context, r *domain.ApprovalRule) error
	UpdateRule(ctx context.Context, r *domain.ApprovalRule) error
	DeleteRule(ctx context.Context, id, companyID string) error
}

// RuleService — администрирование правил согласования.
// Сырой JSON парсится и валидируется один раз на входе (domain.ParseRule);
// вниз по стеку уходят только типизированные правила.
type RuleService struct {
	repo    RuleRepository
	rdb     *redis.Client
	auditor audit.Auditor
	logger  *zap.Logger
}

func NewRuleService(repo RuleRepository, rdb *redis.Client, auditor audit.Auditor, logger *zap.Logger) *RuleService {
	return &RuleService{
		repo:    repo,
		rdb:     rdb,
		auditor: auditor,
		logger:  logger.Named("rule-service"),
	}
}

func (s *RuleService) GetByID(ctx context.Context, id string) (*domain.ApprovalRule, error) {
	return s.repo.GetRuleByID(ctx, id)
}

// List возвращает все правила компании в порядке конфигурирования
func (s *RuleService) List(ctx context.Context, companyID string) ([]domain.ApprovalRule, error) {
	return s.repo.ListRulesByCompany(ctx, companyID)
}

// Create парсит, валидирует и сохраняет правило. Невалидный пейлоад
// отбрасывается до какой-либо записи в БД.
func (s *RuleService) Create(ctx context.Context, companyID, actorID string, payload []byte) (*domain.ApprovalRule, error) {
	rule, err := domain.ParseRule(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule.ID = uuid.New().String()
	rule.CompanyID = companyID
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.audit(actorID, audit.ActionRuleCreated, rule)
	return rule, s.notifyUpdate(ctx)
}

// Update заменяет конфигурацию правила после повторной валидации
func (s *RuleService) Update(ctx context.Context, id, companyID, actorID string, payload []byte) (*domain.ApprovalRule, error) {
	rule, err := domain.ParseRule(payload)
	if err != nil {
		return nil, err
	}
	rule.ID = id
	rule.CompanyID = companyID

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.audit(actorID, audit.ActionRuleUpdated, rule)
	return rule, s.notifyUpdate(ctx)
}

func (s *RuleService) Delete(ctx context.Context, id, companyID, actorID string) error {
	if err := s.repo.DeleteRule(ctx, id, companyID); err != nil {
		return err
	}

	s.auditor.Log(audit.Event{
		ActorUserID: actorID,
		Action:      audit.ActionRuleDeleted,
		EntityType:  audit.EntityApprovalRule,
		EntityID:    id,
	})
	return s.notifyUpdate(ctx)
}

func (s *RuleService) audit(actorID, action string, rule *domain.ApprovalRule) {
	s.auditor.Log(audit.Event{
		ActorUserID: actorID,
		Action:      action,
		EntityType:  audit.EntityApprovalRule,
		EntityID:    rule.ID,
		Details: map[string]interface{}{
			"rule_type":  string(rule.RuleType),
			"company_id": rule.CompanyID,
		},
	})
}

// notifyUpdate отправляет широковещательный сигнал в Redis.
// Инстансы, кэширующие набор правил, по нему перечитают его из БД.
func (s *RuleService) notifyUpdate(ctx context.Context) error {
	// Сигнал может быть простым "refresh", подписчик сам перечитает таблицу
	return s.rdb.Publish(ctx, infra.RedisChanRuleUpdate, "refresh").Err()
}
