package service

import (
	"context"

	"github.com/xela07ax/expenseflow-prototype/internal/domain"
	"github.com/xela07ax/expenseflow-prototype/internal/workflow"
	"go.uber.org/zap"
)

// ExpenseReader описывает требования сервиса к читающему слою хранилища
type ExpenseReader interface {
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	ListExpenseLedger(ctx context.Context, expenseID string) ([]domain.ApprovalRecord, error)
	ListPendingForApprover(ctx context.Context, approverID string) ([]domain.ApprovalRecord, error)
	ListStalledExpenses(ctx context.Context, companyID string) ([]domain.Expense, error)
}

// ExpenseService — тонкая прослойка между HTTP и ядром согласования.
// Все транзакционные операции делегируются движку; здесь только чтение
// и сборка ответов.
type ExpenseService struct {
	engine *workflow.Engine
	reader ExpenseReader
	logger *zap.Logger
}

func NewExpenseService(engine *workflow.Engine, reader ExpenseReader, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{
		engine: engine,
		reader: reader,
		logger: logger.Named("expense-service"),
	}
}

// Submit регистрирует расход и запускает workflow согласования
func (s *ExpenseService) Submit(ctx context.Context, req workflow.SubmitRequest) (*domain.Expense, error) {
	expense, err := s.engine.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("expense submitted",
		zap.String("expense_id", expense.ID),
		zap.String("submitter_id", expense.SubmitterID))
	return expense, nil
}

// Decide проводит решение согласующего через движок
func (s *ExpenseService) Decide(ctx context.Context, req workflow.DecisionRequest) (*workflow.DecisionResult, error) {
	return s.engine.Decide(ctx, req)
}

// ExpenseCard — карточка расхода вместе с журналом согласования
type ExpenseCard struct {
	Expense *domain.Expense         `json:"expense"`
	Ledger  []domain.ApprovalRecord `json:"ledger"`
}

func (s *ExpenseService) GetCard(ctx context.Context, expenseID string) (*ExpenseCard, error) {
	expense, err := s.reader.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.reader.ListExpenseLedger(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return &ExpenseCard{Expense: expense, Ledger: ledger}, nil
}

// PendingQueue — очередь записей, ждущих решения пользователя
func (s *ExpenseService) PendingQueue(ctx context.Context, approverID string) ([]domain.ApprovalRecord, error) {
	return s.reader.ListPendingForApprover(ctx, approverID)
}

// Stalled — отчет о зависших workflow для операторов
func (s *ExpenseService) Stalled(ctx context.Context, companyID string) ([]domain.Expense, error) {
	return s.reader.ListStalledExpenses(ctx, companyID)
}
