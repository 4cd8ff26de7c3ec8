package postgres

/*
Файл rule_repo.go — CRUD для правил согласования.
Правила для ядра read-only; мутации приходят только от администраторов
через Console API и валидируются до вызова репозитория.
*/

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

func (s *Store) GetRuleByID(ctx context.Context, id string) (*domain.ApprovalRule, error) {
	rows, err := s.pool.Query(ctx, ruleSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query rule: %w", err)
	}
	defer rows.Close()

	rules, err := collectRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	return &rules[0], nil
}

// ListRulesByCompany — полный набор правил компании в порядке конфигурирования
func (s *Store) ListRulesByCompany(ctx context.Context, companyID string) ([]domain.ApprovalRule, error) {
	rows, err := s.pool.Query(ctx, ruleSelect+` WHERE company_id = $1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func (s *Store) CreateRule(ctx context.Context, r *domain.ApprovalRule) error {
	approvers, sequence, err := marshalRuleLists(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO approval_rules (id, company_id, rule_type, approvers, approver_sequence, min_approval_percentage, specific_approver_required, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		r.ID, r.CompanyID, r.RuleType, approvers, sequence, r.MinApprovalPercentage, r.SpecificApproverRequired, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create rule: %w", err)
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, r *domain.ApprovalRule) error {
	approvers, sequence, err := marshalRuleLists(r)
	if err != nil {
		return err
	}

	query := `
		UPDATE approval_rules
		SET rule_type = $1, approvers = $2, approver_sequence = $3, min_approval_percentage = $4, specific_approver_required = $5, updated_at = NOW()
		WHERE id = $6 AND company_id = $7`
	result, err := s.pool.Exec(ctx, query,
		r.RuleType, approvers, sequence, r.MinApprovalPercentage, r.SpecificApproverRequired, r.ID, r.CompanyID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id, companyID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM approval_rules WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func marshalRuleLists(r *domain.ApprovalRule) ([]byte, []byte, error) {
	approvers, err := json.Marshal(r.Approvers)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal approvers: %w", err)
	}
	var sequence []byte
	if len(r.ApproverSequence) > 0 {
		sequence, err = json.Marshal(r.ApproverSequence)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: marshal approver_sequence: %w", err)
		}
	}
	return approvers, sequence, nil
}
