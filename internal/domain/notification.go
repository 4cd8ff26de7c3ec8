package domain

// NotificationType — тип исходящего уведомления
type NotificationType string

const (
	NotifyApproval  NotificationType = "approval"
	NotifyRejection NotificationType = "rejection"
)

// Notification — исходящее событие для коллабораторов (почта, push, UI).
// Движок только публикует события; доставка — забота внешних систем.
type Notification struct {
	RecipientUserID  string           `json:"recipient_user_id"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	Type             NotificationType `json:"type"`
	RelatedExpenseID string           `json:"related_expense_id"`
}
