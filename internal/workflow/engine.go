package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/expenseflow-prototype/internal/audit"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// Tx — операции над персистентным состоянием, доступные внутри одной
// транзакции решения. Реализуется postgres-репозиторием; в тестах —
// in-memory фейком.
type Tx interface {
	CreateExpense(ctx context.Context, e *domain.Expense) error
	// GetExpenseForUpdate берет row-level lock: решения по одному расходу
	// сериализуются, по разным — идут полностью параллельно
	GetExpenseForUpdate(ctx context.Context, id string) (*domain.Expense, error)
	UpdateExpenseStatus(ctx context.Context, id string, status domain.ExpenseStatus, now time.Time) error

	GetRecord(ctx context.Context, id string) (*domain.ApprovalRecord, error)
	ListRecords(ctx context.Context, expenseID string) ([]domain.ApprovalRecord, error)
	UpdateRecordDecision(ctx context.Context, rec *domain.ApprovalRecord) error
	InsertRecords(ctx context.Context, recs []domain.ApprovalRecord) error

	ListCompanyRules(ctx context.Context, companyID string) ([]domain.ApprovalRule, error)
	CompanyDirectory(ctx context.Context, companyID string) (map[string]domain.User, error)
}

// Store умеет исполнить функцию внутри одной транзакции БД
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Notifier публикует исходящие события для коллабораторов
type Notifier interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// Engine — транзакционная точка входа ядра согласования.
// Submit строит workflow и открывает первый этап, Decide проводит одно
// решение согласующего от валидации до финального статуса расхода.
type Engine struct {
	store     Store
	notifier  Notifier
	auditor   audit.Auditor
	activator *Activator
	metrics   *Metrics
	logger    *zap.Logger
}

func NewEngine(store Store, notifier Notifier, auditor audit.Auditor, metrics *Metrics, logger *zap.Logger) *Engine {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		store:     store,
		notifier:  notifier,
		auditor:   auditor,
		activator: NewActivator(logger, metrics),
		metrics:   metrics,
		logger:    logger.Named("workflow-engine"),
	}
}

// SubmitRequest — данные от коллаборатора подачи расхода
type SubmitRequest struct {
	CompanyID   string  `json:"company_id"`
	SubmitterID string  `json:"submitter_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// DecisionRequest — одно действие approve/reject от согласующего
type DecisionRequest struct {
	RecordID   string
	ApproverID string
	Approve    bool
	Comment    string
}

// DecisionResult — что произошло в результате решения
type DecisionResult struct {
	Expense *domain.Expense         `json:"expense"`
	Record  *domain.ApprovalRecord  `json:"record"`
	Opened  []domain.ApprovalRecord `json:"opened,omitempty"`
	Stalled bool                    `json:"stalled,omitempty"`
}

// Submit создает расход, строит этапы из текущего набора правил компании
// и открывает первый этап. Все — в одной транзакции; уведомления уходят
// после коммита.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*domain.Expense, error) {
	if req.CompanyID == "" || req.SubmitterID == "" {
		return nil, domain.NewValidationError("submitter", "company_id and submitter_id are required")
	}
	if req.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	now := time.Now().UTC()
	expense := &domain.Expense{
		ID:          uuid.New().String(),
		CompanyID:   req.CompanyID,
		SubmitterID: req.SubmitterID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Status:      domain.ExpensePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var pending []domain.Notification

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}

		stages, directory, err := e.loadStages(ctx, tx, req.CompanyID)
		if err != nil {
			return err
		}

		adv := e.activator.Advance(expense, stages, directory, nil, now)
		if len(adv.NewRecords) > 0 {
			if err := tx.InsertRecords(ctx, adv.NewRecords); err != nil {
				return fmt.Errorf("open first stage: %w", err)
			}
		}
		pending = adv.Notifications
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, pending)
	e.auditor.Log(audit.Event{
		ActorUserID: req.SubmitterID,
		Action:      audit.ActionExpenseSubmitted,
		EntityType:  audit.EntityExpense,
		EntityID:    expense.ID,
		Details: map[string]interface{}{
			"amount":   req.Amount,
			"currency": req.Currency,
		},
	})

	return expense, nil
}

// Decide проводит одно решение согласующего. Вся последовательность —
// валидация записи, фиксация решения, активация следующего этапа,
// вычисление исхода, смена статуса расхода — исполняется в одной
// транзакции под блокировкой строки расхода. Повторное решение по
// обработанной записи — явный ErrConflict, без тихого игнорирования.
func (e *Engine) Decide(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	started := time.Now()
	now := started.UTC()

	var (
		result  DecisionResult
		pending []domain.Notification
	)

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		rec, err := tx.GetRecord(ctx, req.RecordID)
		if err != nil {
			return err
		}

		expense, err := tx.GetExpenseForUpdate(ctx, rec.ExpenseID)
		if err != nil {
			return err
		}
		// Перечитываем запись уже под блокировкой расхода: параллельное
		// решение могло успеть обработать ее между двумя чтениями
		rec, err = tx.GetRecord(ctx, req.RecordID)
		if err != nil {
			return err
		}

		if expense.IsTerminal() {
			return fmt.Errorf("expense %s: %w", expense.ID, domain.ErrTerminalStatus)
		}
		if err := rec.CanDecide(req.ApproverID); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}

		// Фиксируем решение
		if req.Approve {
			rec.Status = domain.RecordApproved
			approvedAt := now
			rec.ApprovedAt = &approvedAt
		} else {
			rec.Status = domain.RecordRejected
		}
		if req.Comment != "" {
			comment := req.Comment
			rec.Comments = &comment
		}
		rec.UpdatedAt = now
		if err := tx.UpdateRecordDecision(ctx, rec); err != nil {
			return fmt.Errorf("persist decision: %w", err)
		}

		records, err := tx.ListRecords(ctx, expense.ID)
		if err != nil {
			return err
		}

		stages, directory, err := e.loadStages(ctx, tx, expense.CompanyID)
		if err != nil {
			return err
		}

		adv := e.activator.Advance(expense, stages, directory, records, now)
		if len(adv.NewRecords) > 0 {
			if err := tx.InsertRecords(ctx, adv.NewRecords); err != nil {
				return fmt.Errorf("open next stage: %w", err)
			}
			records = append(records, adv.NewRecords...)
		}

		rules, err := tx.ListCompanyRules(ctx, expense.CompanyID)
		if err != nil {
			return err
		}

		status := Evaluate(rules, records)
		if status != expense.Status {
			if err := expense.CanTransitionTo(status); err != nil {
				return err
			}
			if err := tx.UpdateExpenseStatus(ctx, expense.ID, status, now); err != nil {
				return fmt.Errorf("persist expense status: %w", err)
			}
			expense.Status = status
			expense.UpdatedAt = now
			adv.Notifications = append(adv.Notifications, terminalNotification(expense))
		}

		result = DecisionResult{Expense: expense, Record: rec, Opened: adv.NewRecords, Stalled: adv.Stalled}
		pending = adv.Notifications
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, pending)

	decision := "rejected"
	action := audit.ActionDecisionRejected
	if req.Approve {
		decision = "approved"
		action = audit.ActionDecisionApproved
	}
	e.metrics.DecisionsTotal.WithLabelValues(decision).Inc()
	e.metrics.DecisionDuration.Observe(time.Since(started).Seconds())

	e.auditor.Log(audit.Event{
		ActorUserID: req.ApproverID,
		Action:      action,
		EntityType:  audit.EntityApproval,
		EntityID:    req.RecordID,
		Details: map[string]interface{}{
			"expense_id":     result.Expense.ID,
			"expense_status": string(result.Expense.Status),
			"comment":        req.Comment,
		},
	})

	return &result, nil
}

// loadStages пересобирает список этапов из актуального набора правил.
// Журнал — персистентная истина, этапы каждый раз выводятся заново
// (идемпотентность активатора делает это безопасным).
func (e *Engine) loadStages(ctx context.Context, tx Tx, companyID string) ([]Stage, map[string]domain.User, error) {
	rules, err := tx.ListCompanyRules(ctx, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}
	directory, err := tx.CompanyDirectory(ctx, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load directory: %w", err)
	}

	stages := BuildStages(rules)
	if len(stages) == 0 {
		stages = FallbackStage(directory)
	}
	return stages, directory, nil
}

// publish рассылает уведомления после коммита. Потеря сигнала не
// откатывает решение: фиксируем в логе и метрике, доставка — best effort.
func (e *Engine) publish(ctx context.Context, notifications []domain.Notification) {
	for _, n := range notifications {
		if err := e.notifier.Publish(ctx, n); err != nil {
			e.metrics.NotifyErrors.Inc()
			e.logger.Error("decision saved but notification not delivered",
				zap.String("recipient", n.RecipientUserID),
				zap.String("expense_id", n.RelatedExpenseID),
				zap.Error(err))
		}
	}
}

func terminalNotification(expense *domain.Expense) domain.Notification {
	if expense.Status == domain.ExpenseApproved {
		return domain.Notification{
			RecipientUserID:  expense.SubmitterID,
			Title:            "Expense approved",
			Message:          fmt.Sprintf("Your expense of %.2f %s has been approved", expense.Amount, expense.Currency),
			Type:             domain.NotifyApproval,
			RelatedExpenseID: expense.ID,
		}
	}
	return domain.Notification{
		RecipientUserID:  expense.SubmitterID,
		Title:            "Expense rejected",
		Message:          fmt.Sprintf("Your expense of %.2f %s has been rejected", expense.Amount, expense.Currency),
		Type:             domain.NotifyRejection,
		RelatedExpenseID: expense.ID,
	}
}
