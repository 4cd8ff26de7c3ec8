package workflow

import "github.com/xela07ax/expenseflow-prototype/internal/domain"

// ResolveApprovers превращает кандидатов этапа в итоговый список реально
// допустимых согласующих:
//   - податель расхода не согласует сам себя;
//   - ушедшие из компании или чужие пользователи молча отбрасываются;
//   - уже получившие запись в журнале этого расхода не назначаются повторно
//     (защита от дублей при слиянии нескольких правил).
//
// Результат может оказаться пустым — это сигнал зависшего workflow,
// решение о реакции принимает активатор.
func ResolveApprovers(
	candidates []string,
	submitterID string,
	companyID string,
	directory map[string]domain.User,
	ledger []domain.ApprovalRecord,
) []string {
	alreadyAssigned := make(map[string]bool, len(ledger))
	for _, rec := range ledger {
		alreadyAssigned[rec.ApproverID] = true
	}

	var resolved []string
	for _, id := range candidates {
		if id == submitterID {
			continue
		}
		u, ok := directory[id]
		if !ok || u.CompanyID != companyID {
			continue
		}
		if alreadyAssigned[id] {
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved
}
