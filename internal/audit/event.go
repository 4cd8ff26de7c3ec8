package audit

import "time"

// Действия, попадающие в журнал аудита
const (
	ActionExpenseSubmitted = "expense_submitted"
	ActionDecisionApproved = "decision_approved"
	ActionDecisionRejected = "decision_rejected"
	ActionRuleCreated      = "rule_created"
	ActionRuleUpdated      = "rule_updated"
	ActionRuleDeleted      = "rule_deleted"
)

// Типы сущностей аудита
const (
	EntityExpense      = "expense"
	EntityApproval     = "approval"
	EntityApprovalRule = "approval_rule"
)

type Event struct {
	ID          string                 `json:"id"`            // UUID события
	ActorUserID string                 `json:"actor_user_id"` // Кто делал
	Action      string                 `json:"action"`        // Что сделал
	EntityType  string                 `json:"entity_type"`   // expense | approval | approval_rule
	EntityID    string                 `json:"entity_id"`
	Details     map[string]interface{} `json:"details,omitempty"` // Контекст действия

	Timestamp time.Time `json:"timestamp"`
}
