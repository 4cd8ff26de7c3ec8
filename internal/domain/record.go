package domain

import "time"

// RecordStatus — статус отдельной записи согласования
type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordApproved RecordStatus = "approved"
	RecordRejected RecordStatus = "rejected"
	// RecordEscalated зарезервирован под эскалацию; ни одна операция его пока не выставляет
	RecordEscalated RecordStatus = "escalated"
)

// ApprovalRecord — одна запись в журнале согласования расхода:
// один согласующий на одном этапе. Уникальна по (expense_id, approver_id).
// Создается исключительно активатором этапов, клиенты пишут только решение.
type ApprovalRecord struct {
	ID            string       `json:"id"`
	ExpenseID     string       `json:"expense_id"`
	ApproverID    string       `json:"approver_id"`
	SequenceOrder int          `json:"sequence_order"` // номер этапа, >= 1
	Status        RecordStatus `json:"status"`

	Comments   *string    `json:"comments,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanDecide проверяет, что решение по записи допустимо: запись принадлежит
// действующему согласующему и еще не обработана. Повторное решение — это
// явный конфликт, а не тихий no-op.
func (rec *ApprovalRecord) CanDecide(approverID string) error {
	if rec.ApproverID != approverID {
		return ErrConflict
	}
	if rec.Status != RecordPending {
		return ErrConflict
	}
	return nil
}
