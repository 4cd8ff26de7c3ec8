package workflow

import (
	"math"

	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

// Evaluate — чистая тотальная функция: (правила, журнал) → статус расхода.
// Никаких побочных эффектов и паник; для структурно валидного входа всегда
// возвращает один из трех статусов.
//
// Порядок резолюции:
//  1. пустой журнал → pending;
//  2. любая rejected-запись → rejected (глобальный short-circuit);
//  3. правила в порядке списка, первое сработавшее побеждает:
//     specific/hybrid — одобрение назначенного пользователя;
//     percentage/hybrid — набран кворум ceil(min% × |кандидаты|);
//  4. ни одно правило не сработало → approved, если все записи approved.
func Evaluate(rules []domain.ApprovalRule, records []domain.ApprovalRecord) domain.ExpenseStatus {
	if len(records) == 0 {
		return domain.ExpensePending
	}

	approvedBy := make(map[string]bool, len(records))
	approvedCount := 0
	allApproved := true

	for _, rec := range records {
		switch rec.Status {
		case domain.RecordRejected:
			// Один отказ валит весь расход, сколько бы одобрений ни было
			return domain.ExpenseRejected
		case domain.RecordApproved:
			approvedBy[rec.ApproverID] = true
			approvedCount++
		default:
			allApproved = false
		}
	}

	for _, rule := range rules {
		if rule.RuleType == domain.RuleSpecific || rule.RuleType == domain.RuleHybrid {
			if rule.SpecificApproverRequired != nil && approvedBy[*rule.SpecificApproverRequired] {
				return domain.ExpenseApproved
			}
		}

		if rule.RuleType == domain.RulePercentage || rule.RuleType == domain.RuleHybrid {
			candidates := rule.Approvers
			if len(candidates) == 0 {
				candidates = distinctApprovers(records)
			}

			required := int(math.Ceil(rule.MinApprovalPercentage / 100.0 * float64(len(candidates))))
			if required == 0 {
				if approvedCount > 0 {
					return domain.ExpenseApproved
				}
				continue
			}

			got := 0
			for _, id := range candidates {
				if approvedBy[id] {
					got++
				}
			}
			if got >= required {
				return domain.ExpenseApproved
			}
		}
	}

	// Правила молчат (или их нет): единогласие всех записей журнала
	if allApproved {
		return domain.ExpenseApproved
	}
	return domain.ExpensePending
}

func distinctApprovers(records []domain.ApprovalRecord) []string {
	seen := make(map[string]bool, len(records))
	var ids []string
	for _, rec := range records {
		if !seen[rec.ApproverID] {
			seen[rec.ApproverID] = true
			ids = append(ids, rec.ApproverID)
		}
	}
	return ids
}
