package domain

import "time"

// Статусы State Machine расхода
type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

// Expense — расход, проходящий через цикл согласования.
// Ядро мутирует только поле Status, и только pending → approved|rejected.
type Expense struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"company_id"`
	SubmitterID string        `json:"submitter_id"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Description string        `json:"description,omitempty"`
	Status      ExpenseStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal — финальный статус необратим
func (e *Expense) IsTerminal() bool {
	return e.Status == ExpenseApproved || e.Status == ExpenseRejected
}

// CanTransitionTo проверяет правила конечного автомата
func (e *Expense) CanTransitionTo(next ExpenseStatus) error {
	if e.IsTerminal() {
		return ErrTerminalStatus
	}
	if next == ExpensePending {
		return ErrConflict
	}
	return nil
}
