package postgres

/*
Файл ledger_tx.go — транзакционные операции ядра согласования.
Все методы работают на одном pgx.Tx: решение согласующего, активация
следующего этапа и смена статуса расхода коммитятся атомарно.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

type LedgerTx struct {
	tx pgx.Tx
}

func (t *LedgerTx) CreateExpense(ctx context.Context, e *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, company_id, submitter_id, amount, currency, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.tx.Exec(ctx, query,
		e.ID, e.CompanyID, e.SubmitterID, e.Amount, e.Currency, e.Description, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create expense: %w", err)
	}
	return nil
}

// GetExpenseForUpdate читает расход под row-level блокировкой.
// Конкурирующие решения по одному расходу выстраиваются в очередь здесь.
func (t *LedgerTx) GetExpenseForUpdate(ctx context.Context, id string) (*domain.Expense, error) {
	query := `
		SELECT id, company_id, submitter_id, amount, currency, description, status, created_at, updated_at
		FROM expenses WHERE id = $1
		FOR UPDATE`

	var e domain.Expense
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.CompanyID, &e.SubmitterID, &e.Amount, &e.Currency, &e.Description, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("expense %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to lock expense: %w", err)
	}
	return &e, nil
}

func (t *LedgerTx) UpdateExpenseStatus(ctx context.Context, id string, status domain.ExpenseStatus, now time.Time) error {
	// Условие status='pending' — страховка терминальной монотонности на уровне БД
	query := `UPDATE expenses SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'pending'`
	result, err := t.tx.Exec(ctx, query, status, now, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update expense status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("expense %s already finalized: %w", id, domain.ErrTerminalStatus)
	}
	return nil
}

func (t *LedgerTx) GetRecord(ctx context.Context, id string) (*domain.ApprovalRecord, error) {
	query := `
		SELECT id, expense_id, approver_id, sequence_order, status, comments, approved_at, created_at, updated_at
		FROM approval_records WHERE id = $1`

	rec, err := scanRecord(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("approval record %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to get approval record: %w", err)
	}
	return rec, nil
}

func (t *LedgerTx) ListRecords(ctx context.Context, expenseID string) ([]domain.ApprovalRecord, error) {
	query := `
		SELECT id, expense_id, approver_id, sequence_order, status, comments, approved_at, created_at, updated_at
		FROM approval_records
		WHERE expense_id = $1
		ORDER BY sequence_order, created_at`

	rows, err := t.tx.Query(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query ledger: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
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

// UpdateRecordDecision фиксирует решение. Условие status='pending' защищает
// от Double Decision на уровне БД, даже если прикладная проверка обойдена.
func (t *LedgerTx) UpdateRecordDecision(ctx context.Context, rec *domain.ApprovalRecord) error {
	query := `
		UPDATE approval_records
		SET status = $1, comments = $2, approved_at = $3, updated_at = $4
		WHERE id = $5 AND status = 'pending'`

	result, err := t.tx.Exec(ctx, query, rec.Status, rec.Comments, rec.ApprovedAt, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update record decision: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("record %s already processed: %w", rec.ID, domain.ErrConflict)
	}
	return nil
}

func (t *LedgerTx) InsertRecords(ctx context.Context, recs []domain.ApprovalRecord) error {
	for _, rec := range recs {
		query := `
			INSERT INTO approval_records (id, expense_id, approver_id, sequence_order, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err := t.tx.Exec(ctx, query,
			rec.ID, rec.ExpenseID, rec.ApproverID, rec.SequenceOrder, rec.Status, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("postgres: failed to insert approval record: %w", err)
		}
	}
	return nil
}

func (t *LedgerTx) ListCompanyRules(ctx context.Context, companyID string) ([]domain.ApprovalRule, error) {
	rows, err := t.tx.Query(ctx, ruleSelect+` WHERE company_id = $1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func (t *LedgerTx) CompanyDirectory(ctx context.Context, companyID string) (map[string]domain.User, error) {
	query := `
		SELECT id, company_id, email, username, password_hash, role, created_at, updated_at
		FROM users WHERE company_id = $1`

	rows, err := t.tx.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query directory: %w", err)
	}
	defer rows.Close()

	directory := make(map[string]domain.User)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan user: %w", err)
		}
		directory[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return directory, nil
}

// scanRecord маппит строку approval_records с NULL-колонками
func scanRecord(row pgx.Row) (*domain.ApprovalRecord, error) {
	var rec domain.ApprovalRecord
	var comments *string
	var approvedAt *time.Time

	err := row.Scan(
		&rec.ID, &rec.ExpenseID, &rec.ApproverID, &rec.SequenceOrder, &rec.Status,
		&comments, &approvedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Comments = comments
	rec.ApprovedAt = approvedAt
	return &rec, nil
}

const ruleSelect = `
	SELECT id, company_id, rule_type, approvers, approver_sequence, min_approval_percentage, specific_approver_required, created_at, updated_at
	FROM approval_rules`

// collectRules разворачивает jsonb-колонки approvers и approver_sequence
func collectRules(rows pgx.Rows) ([]domain.ApprovalRule, error) {
	var rules []domain.ApprovalRule
	for rows.Next() {
		var r domain.ApprovalRule
		var approversRaw, sequenceRaw []byte

		err := rows.Scan(
			&r.ID, &r.CompanyID, &r.RuleType, &approversRaw, &sequenceRaw,
			&r.MinApprovalPercentage, &r.SpecificApproverRequired, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan rule: %w", err)
		}

		if len(approversRaw) > 0 {
			if err := json.Unmarshal(approversRaw, &r.Approvers); err != nil {
				return nil, fmt.Errorf("postgres: malformed approvers json: %w", err)
			}
		}
		if len(sequenceRaw) > 0 {
			if err := json.Unmarshal(sequenceRaw, &r.ApproverSequence); err != nil {
				return nil, fmt.Errorf("postgres: malformed approver_sequence json: %w", err)
			}
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return rules, nil
}
