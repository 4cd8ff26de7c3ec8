package postgres

/*
Файл expense_repo.go — читающие запросы для Console API: карточка расхода,
очередь согласующего (Decision Queue) и отчет о зависших workflow.
*/

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

// GetExpense возвращает расход без блокировки (read path)
func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	query := `
		SELECT id, company_id, submitter_id, amount, currency, description, status, created_at, updated_at
		FROM expenses WHERE id = $1`

	var e domain.Expense
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.CompanyID, &e.SubmitterID, &e.Amount, &e.Currency, &e.Description, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("expense %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to get expense: %w", err)
	}
	return &e, nil
}

// ListExpenseLedger возвращает журнал согласования расхода
func (s *Store) ListExpenseLedger(ctx context.Context, expenseID string) ([]domain.ApprovalRecord, error) {
	query := `
		SELECT id, expense_id, approver_id, sequence_order, status, comments, approved_at, created_at, updated_at
		FROM approval_records
		WHERE expense_id = $1
		ORDER BY sequence_order, created_at`

	rows, err := s.pool.Query(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query ledger: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ApprovalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return records, nil
}

// ListPendingForApprover — очередь записей, ждущих решения пользователя
func (s *Store) ListPendingForApprover(ctx context.Context, approverID string) ([]domain.ApprovalRecord, error) {
	query := `
		SELECT id, expense_id, approver_id, sequence_order, status, comments, approved_at, created_at, updated_at
		FROM approval_records
		WHERE approver_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 100`

	rows, err := s.pool.Query(ctx, query, approverID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query pending approvals: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ApprovalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return records, nil
}

// ListStalledExpenses — health-отчет для операторов: расходы в pending,
// у которых нет ни одной открытой (pending) записи согласования.
// Такой workflow сам не продвинется — этап разрешился в пустой состав.
func (s *Store) ListStalledExpenses(ctx context.Context, companyID string) ([]domain.Expense, error) {
	query := `
		SELECT e.id, e.company_id, e.submitter_id, e.amount, e.currency, e.description, e.status, e.created_at, e.updated_at
		FROM expenses e
		WHERE e.company_id = $1
		  AND e.status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM approval_records r
			WHERE r.expense_id = e.id AND r.status = 'pending'
		  )
		ORDER BY e.created_at`

	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query stalled expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0)
	for rows.Next() {
		var e domain.Expense
		err := rows.Scan(&e.ID, &e.CompanyID, &e.SubmitterID, &e.Amount, &e.Currency, &e.Description, &e.Status, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return expenses, nil
}
