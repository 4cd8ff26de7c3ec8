package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// RuleType определяет семантику правила согласования
type RuleType string

const (
	// RulePercentage — кворум: достаточно min_approval_percentage от состава
	RulePercentage RuleType = "percentage"
	// RuleSpecific — достаточно одобрения конкретного пользователя
	RuleSpecific RuleType = "specific"
	// RuleHybrid — логическое ИЛИ кворума и конкретного пользователя
	RuleHybrid RuleType = "hybrid"
)

// SequenceStep — явный шаг в последовательности согласующих правила
type SequenceStep struct {
	ApproverID string `json:"approver_id"`
	Order      int    `json:"order"`
}

// ApprovalRule — типизированное правило согласования компании.
// Входящие JSON-пейлоады парсятся в эту структуру на границе и валидируются
// один раз; дальше по коду нетипизированные map не гуляют.
type ApprovalRule struct {
	ID        string   `json:"id"`
	CompanyID string   `json:"company_id"`
	RuleType  RuleType `json:"rule_type"`

	// Approvers — состав согласующих, порядок массива значим (1-based)
	Approvers []string `json:"approvers"`
	// ApproverSequence — опциональное явное переопределение порядка
	ApproverSequence []SequenceStep `json:"approver_sequence,omitempty"`

	MinApprovalPercentage    float64 `json:"min_approval_percentage"`
	SpecificApproverRequired *string `json:"specific_approver_required,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseRule разбирает свободный JSON-пейлоад правила и сразу валидирует его.
// Единственная точка входа для внешних данных о правилах.
func ParseRule(raw []byte) (*ApprovalRule, error) {
	var r ApprovalRule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, NewValidationError("payload", fmt.Sprintf("malformed rule json: %v", err))
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate проверяет инварианты правила. Ничего не мутирует:
// правило либо целиком валидно, либо отбрасывается до персистентности.
func (r *ApprovalRule) Validate() error {
	switch r.RuleType {
	case RulePercentage, RuleSpecific, RuleHybrid:
	default:
		return NewValidationError("rule_type", fmt.Sprintf("unknown rule type %q", r.RuleType))
	}

	if r.MinApprovalPercentage < 0 || r.MinApprovalPercentage > 100 {
		return NewValidationError("min_approval_percentage", "must be within [0,100]")
	}

	if r.RuleType == RulePercentage || r.RuleType == RuleHybrid {
		if len(r.Approvers) == 0 {
			return NewValidationError("approvers", "percentage/hybrid rule requires at least one approver")
		}
		if r.MinApprovalPercentage <= 0 {
			return NewValidationError("min_approval_percentage", "percentage/hybrid rule requires percentage > 0")
		}
	}

	if r.RuleType == RuleSpecific || r.RuleType == RuleHybrid {
		if r.SpecificApproverRequired == nil || *r.SpecificApproverRequired == "" {
			return NewValidationError("specific_approver_required", "specific/hybrid rule requires a designated approver")
		}
	}

	return nil
}

// OrderedSteps возвращает упорядоченную последовательность согласующих
// этого правила. Берем явную approver_sequence, если она задана, иначе
// нумеруем approvers по индексу массива (1-based). Обязательный согласующий
// (specific_approver_required), не попавший в список, добавляется финальным
// шагом собственной последовательности правила.
func (r *ApprovalRule) OrderedSteps() []SequenceStep {
	var steps []SequenceStep

	if len(r.ApproverSequence) > 0 {
		steps = make([]SequenceStep, len(r.ApproverSequence))
		copy(steps, r.ApproverSequence)
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	} else {
		steps = make([]SequenceStep, 0, len(r.Approvers))
		for i, id := range r.Approvers {
			steps = append(steps, SequenceStep{ApproverID: id, Order: i + 1})
		}
	}

	if r.SpecificApproverRequired != nil && *r.SpecificApproverRequired != "" {
		present := false
		maxOrder := 0
		for _, s := range steps {
			if s.ApproverID == *r.SpecificApproverRequired {
				present = true
			}
			if s.Order > maxOrder {
				maxOrder = s.Order
			}
		}
		if !present {
			steps = append(steps, SequenceStep{ApproverID: *r.SpecificApproverRequired, Order: maxOrder + 1})
		}
	}

	return steps
}
