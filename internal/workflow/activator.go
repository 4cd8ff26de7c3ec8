package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// AdvanceResult — итог одного прохода активатора.
// NewRecords персистит вызывающая транзакция, Notifications публикуются
// только после успешного коммита.
type AdvanceResult struct {
	NewRecords    []domain.ApprovalRecord
	Notifications []domain.Notification

	// Stalled — очередной этап разрешился в пустой список согласующих.
	// Расход остается pending без открытого этапа; это репортуемая
	// мисконфигурация для операторов, а не повод перескочить этап.
	Stalled bool
}

// Activator — конечный автомат открытия этапов. Реентерабелен и
// идемпотентен: повторный прогон по тому же персистентному состоянию
// не создает новых записей.
type Activator struct {
	logger  *zap.Logger
	metrics *Metrics
}

func NewActivator(logger *zap.Logger, metrics *Metrics) *Activator {
	return &Activator{
		logger:  logger.Named("activator"),
		metrics: metrics,
	}
}

// Advance решает, пора ли открывать следующий этап, и если да — готовит
// pending-записи журнала и уведомления для его согласующих.
//
// Правила прохода:
//  1. Любая rejected-запись — ничего не открываем, исход решит Evaluate.
//  2. Этап считается завершенным, если у него есть записи и все approved.
//  3. Идем по этапам по возрастанию; останавливаемся на первом этапе без
//     записей. Если все предыдущие завершены — открываем его. Пустая
//     резолюция согласующих блокирует проход (Stalled), этапы не
//     перепрыгиваются.
//  4. Если очередной этап не завершен — выходим, не открывая ничего.
func (a *Activator) Advance(
	expense *domain.Expense,
	stages []Stage,
	directory map[string]domain.User,
	records []domain.ApprovalRecord,
	now time.Time,
) AdvanceResult {
	var res AdvanceResult

	for _, rec := range records {
		if rec.Status == domain.RecordRejected {
			return res
		}
	}

	byOrder := make(map[int][]domain.ApprovalRecord, len(records))
	for _, rec := range records {
		byOrder[rec.SequenceOrder] = append(byOrder[rec.SequenceOrder], rec)
	}

	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, stage := range ordered {
		existing := byOrder[stage.Order]

		if len(existing) > 0 {
			if stageComplete(existing) {
				continue // этап закрыт, смотрим следующий
			}
			return res // этап еще в работе — ждем решений
		}

		// Первый этап без записей, все предыдущие завершены — открываем
		resolved := ResolveApprovers(stage.Approvers, expense.SubmitterID, expense.CompanyID, directory, records)
		if len(resolved) == 0 {
			res.Stalled = true
			a.metrics.StalledWorkflows.Inc()
			a.logger.Warn("stage resolved to zero eligible approvers, workflow stalled",
				zap.String("expense_id", expense.ID),
				zap.Int("stage", stage.Order),
				zap.Strings("candidates", stage.Approvers))
			return res
		}

		for _, approverID := range resolved {
			res.NewRecords = append(res.NewRecords, domain.ApprovalRecord{
				ID:            uuid.New().String(),
				ExpenseID:     expense.ID,
				ApproverID:    approverID,
				SequenceOrder: stage.Order,
				Status:        domain.RecordPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			res.Notifications = append(res.Notifications, domain.Notification{
				RecipientUserID:  approverID,
				Title:            "Approval required",
				Message:          fmt.Sprintf("Expense %.2f %s awaits your approval", expense.Amount, expense.Currency),
				Type:             domain.NotifyApproval,
				RelatedExpenseID: expense.ID,
			})
		}

		a.metrics.StagesOpened.Inc()
		a.logger.Info("approval stage opened",
			zap.String("expense_id", expense.ID),
			zap.Int("stage", stage.Order),
			zap.Int("approvers", len(resolved)))

		// Открыли один этап — дальше идти некуда, его записи еще pending
		return res
	}

	return res
}

func stageComplete(records []domain.ApprovalRecord) bool {
	for _, rec := range records {
		if rec.Status != domain.RecordApproved {
			return false
		}
	}
	return len(records) > 0
}
