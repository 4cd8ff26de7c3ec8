package workflow

import (
	"sort"

	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

// Stage — один этап согласования. Согласующие внутри этапа действуют
// параллельно, этапы открываются строго последовательно.
// Структура эфемерна: пересчитывается из правил, в БД не хранится.
type Stage struct {
	Order     int      `json:"order"`
	Approvers []string `json:"approvers"`
}

// BuildStages сливает набор правил компании в упорядоченный непрерывный
// список этапов. Чистая функция: никакого разделяемого состояния между
// вызовами, результат полностью определяется списком правил.
//
// Алгоритм: последовательности всех правил складываются в карту
// (порядок → состав этапа) с объединением составов на одном порядке;
// затем каждый согласующий остается только на первом этапе, где он
// встретился (никого не спрашиваем дважды); пустые этапы выбрасываются,
// выжившие перенумеровываются 1..N без дыр.
func BuildStages(rules []domain.ApprovalRule) []Stage {
	// порядок → согласующие (с сохранением порядка первого появления)
	members := make(map[int][]string)
	seenAt := make(map[int]map[string]bool)
	var orders []int

	for _, rule := range rules {
		for _, step := range rule.OrderedSteps() {
			if step.ApproverID == "" {
				continue
			}
			if seenAt[step.Order] == nil {
				seenAt[step.Order] = make(map[string]bool)
				orders = append(orders, step.Order)
			}
			if seenAt[step.Order][step.ApproverID] {
				continue
			}
			seenAt[step.Order][step.ApproverID] = true
			members[step.Order] = append(members[step.Order], step.ApproverID)
		}
	}

	sort.Ints(orders)

	// Дедупликация между этапами: согласующий закрепляется за первым этапом
	assigned := make(map[string]bool)
	stages := make([]Stage, 0, len(orders))

	for _, order := range orders {
		var kept []string
		for _, id := range members[order] {
			if assigned[id] {
				continue
			}
			assigned[id] = true
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			continue
		}
		stages = append(stages, Stage{Order: len(stages) + 1, Approvers: kept})
	}

	return stages
}

// FallbackStage строит единственный этап из менеджеров и админов компании.
// Используется, когда слияние правил дало пустой результат (правил нет
// или все вырожденные) — расход все равно должен кем-то согласовываться.
func FallbackStage(directory map[string]domain.User) []Stage {
	var ids []string
	for _, u := range directory {
		if u.IsApproverEligible() {
			ids = append(ids, u.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids) // детерминированный порядок при обходе map
	return []Stage{{Order: 1, Approvers: ids}}
}
