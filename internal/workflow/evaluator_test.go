package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

func strPtr(s string) *string { return &s }

func rec(approver string, order int, status domain.RecordStatus) domain.ApprovalRecord {
	return domain.ApprovalRecord{
		ID:            "rec-" + approver,
		ExpenseID:     "exp-1",
		ApproverID:    approver,
		SequenceOrder: order,
		Status:        status,
	}
}

func TestEvaluate(t *testing.T) {
	percentageRule := domain.ApprovalRule{
		ID:                    "r1",
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"a", "b", "c"},
		MinApprovalPercentage: 50,
	}
	specificRule := domain.ApprovalRule{
		ID:                       "r2",
		RuleType:                 domain.RuleSpecific,
		SpecificApproverRequired: strPtr("cfo"),
	}
	hybridRule := domain.ApprovalRule{
		ID:                       "r3",
		RuleType:                 domain.RuleHybrid,
		Approvers:                []string{"a", "b"},
		MinApprovalPercentage:    50,
		SpecificApproverRequired: strPtr("cfo"),
	}

	testCases := []struct {
		name     string
		rules    []domain.ApprovalRule
		records  []domain.ApprovalRecord
		expected domain.ExpenseStatus
	}{
		{
			name:     "no records is always pending",
			rules:    []domain.ApprovalRule{percentageRule},
			records:  nil,
			expected: domain.ExpensePending,
		},
		{
			name:     "no rules, partial approvals stay pending",
			rules:    nil,
			records:  []domain.ApprovalRecord{rec("m1", 1, domain.RecordApproved), rec("m2", 1, domain.RecordPending)},
			expected: domain.ExpensePending,
		},
		{
			name:     "no rules, unanimous approval approves",
			rules:    nil,
			records:  []domain.ApprovalRecord{rec("m1", 1, domain.RecordApproved), rec("m2", 1, domain.RecordApproved)},
			expected: domain.ExpenseApproved,
		},
		{
			name:     "no rules, single rejection rejects",
			rules:    nil,
			records:  []domain.ApprovalRecord{rec("m1", 1, domain.RecordApproved), rec("m2", 1, domain.RecordRejected)},
			expected: domain.ExpenseRejected,
		},
		{
			name:     "rejection wins over satisfied quorum",
			rules:    []domain.ApprovalRule{percentageRule},
			records:  []domain.ApprovalRecord{rec("a", 1, domain.RecordApproved), rec("b", 2, domain.RecordApproved), rec("c", 3, domain.RecordRejected)},
			expected: domain.ExpenseRejected,
		},
		{
			name:     "percentage 50 of 3 needs two approvals",
			rules:    []domain.ApprovalRule{percentageRule},
			records:  []domain.ApprovalRecord{rec("a", 1, domain.RecordApproved), rec("b", 2, domain.RecordPending)},
			expected: domain.ExpensePending,
		},
		{
			name:     "percentage 50 of 3 satisfied by two",
			rules:    []domain.ApprovalRule{percentageRule},
			records:  []domain.ApprovalRecord{rec("a", 1, domain.RecordApproved), rec("b", 2, domain.RecordApproved), rec("c", 3, domain.RecordPending)},
			expected: domain.ExpenseApproved,
		},
		{
			name:     "specific approver short-circuits pending colleagues",
			rules:    []domain.ApprovalRule{specificRule},
			records:  []domain.ApprovalRecord{rec("cfo", 1, domain.RecordApproved), rec("m1", 1, domain.RecordPending)},
			expected: domain.ExpenseApproved,
		},
		{
			name:     "specific approver silent, others cannot finish",
			rules:    []domain.ApprovalRule{specificRule},
			records:  []domain.ApprovalRecord{rec("m1", 1, domain.RecordApproved), rec("cfo", 1, domain.RecordPending)},
			expected: domain.ExpensePending,
		},
		{
			name:     "hybrid satisfied by designated approver",
			rules:    []domain.ApprovalRule{hybridRule},
			records:  []domain.ApprovalRecord{rec("cfo", 1, domain.RecordApproved), rec("a", 1, domain.RecordPending), rec("b", 1, domain.RecordPending)},
			expected: domain.ExpenseApproved,
		},
		{
			name:     "hybrid satisfied by quorum without designated approver",
			rules:    []domain.ApprovalRule{hybridRule},
			records:  []domain.ApprovalRecord{rec("a", 1, domain.RecordApproved), rec("cfo", 1, domain.RecordPending)},
			expected: domain.ExpenseApproved, // ceil(0.5*2)=1
		},
		{
			name: "percentage rule without approvers falls back to ledger participants",
			rules: []domain.ApprovalRule{{
				ID:                    "r4",
				RuleType:              domain.RulePercentage,
				MinApprovalPercentage: 100,
			}},
			records:  []domain.ApprovalRecord{rec("m1", 1, domain.RecordApproved), rec("m2", 1, domain.RecordApproved)},
			expected: domain.ExpenseApproved,
		},
		{
			name: "scenario: 34 percent of three requires two",
			rules: []domain.ApprovalRule{{
				ID:                    "r5",
				RuleType:              domain.RulePercentage,
				Approvers:             []string{"m1", "m2", "m3"},
				MinApprovalPercentage: 34,
			}},
			records:  []domain.ApprovalRecord{rec("m1", 1, domain.RecordApproved)},
			expected: domain.ExpensePending, // ceil(0.34*3)=2
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Evaluate(tc.rules, tc.records))
		})
	}
}

// Evaluate обязана быть тотальной: пустые и nil входы не должны ронять ее
func TestEvaluateTotality(t *testing.T) {
	assert.NotPanics(t, func() {
		Evaluate(nil, nil)
		Evaluate([]domain.ApprovalRule{{RuleType: domain.RuleSpecific}}, []domain.ApprovalRecord{rec("x", 1, domain.RecordApproved)})
		Evaluate([]domain.ApprovalRule{{RuleType: "garbage"}}, []domain.ApprovalRecord{rec("x", 1, domain.RecordPending)})
	})
}

// Чистота: повторный вызов на тех же аргументах дает тот же результат,
// аргументы не мутируются
func TestEvaluatePurity(t *testing.T) {
	rules := []domain.ApprovalRule{{
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"a", "b"},
		MinApprovalPercentage: 50,
	}}
	records := []domain.ApprovalRecord{rec("a", 1, domain.RecordApproved), rec("b", 1, domain.RecordPending)}

	first := Evaluate(rules, records)
	second := Evaluate(rules, records)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.RecordApproved, records[0].Status)
	assert.Equal(t, []string{"a", "b"}, rules[0].Approvers)
}
