package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
)

func TestBuildStagesEmptyRules(t *testing.T) {
	assert.Empty(t, BuildStages(nil))
	assert.Empty(t, BuildStages([]domain.ApprovalRule{}))
}

func TestBuildStagesNumbersApproversByIndex(t *testing.T) {
	rules := []domain.ApprovalRule{{
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"m1", "m2", "m3"},
		MinApprovalPercentage: 50,
	}}

	stages := BuildStages(rules)

	require.Len(t, stages, 3)
	assert.Equal(t, []string{"m1"}, stages[0].Approvers)
	assert.Equal(t, []string{"m2"}, stages[1].Approvers)
	assert.Equal(t, []string{"m3"}, stages[2].Approvers)
	assert.Equal(t, 1, stages[0].Order)
	assert.Equal(t, 3, stages[2].Order)
}

func TestBuildStagesExplicitSequenceOverridesArray(t *testing.T) {
	rules := []domain.ApprovalRule{{
		RuleType:              domain.RulePercentage,
		Approvers:             []string{"m1", "m2"},
		MinApprovalPercentage: 50,
		ApproverSequence: []domain.SequenceStep{
			{ApproverID: "m2", Order: 1},
			{ApproverID: "m1", Order: 1},
		},
	}}

	stages := BuildStages(rules)

	require.Len(t, stages, 1)
	assert.Equal(t, []string{"m2", "m1"}, stages[0].Approvers)
}

func TestBuildStagesAppendsSpecificApprover(t *testing.T) {
	rules := []domain.ApprovalRule{{
		RuleType:                 domain.RuleHybrid,
		Approvers:                []string{"m1"},
		MinApprovalPercentage:    50,
		SpecificApproverRequired: strPtr("cfo"),
	}}

	stages := BuildStages(rules)

	require.Len(t, stages, 2)
	assert.Equal(t, []string{"m1"}, stages[0].Approvers)
	assert.Equal(t, []string{"cfo"}, stages[1].Approvers)
}

func TestBuildStagesSpecificApproverAlreadyListed(t *testing.T) {
	rules := []domain.ApprovalRule{{
		RuleType:                 domain.RuleHybrid,
		Approvers:                []string{"cfo", "m1"},
		MinApprovalPercentage:    50,
		SpecificApproverRequired: strPtr("cfo"),
	}}

	stages := BuildStages(rules)

	// cfo уже в последовательности — финальный шаг не добавляется
	require.Len(t, stages, 2)
	assert.Equal(t, []string{"cfo"}, stages[0].Approvers)
	assert.Equal(t, []string{"m1"}, stages[1].Approvers)
}

func TestBuildStagesMergesRulesOnSameOrder(t *testing.T) {
	rules := []domain.ApprovalRule{
		{
			RuleType:              domain.RulePercentage,
			Approvers:             []string{"m1", "m2"},
			MinApprovalPercentage: 50,
		},
		{
			RuleType:              domain.RulePercentage,
			Approvers:             []string{"m3", "m2"},
			MinApprovalPercentage: 50,
		},
	}

	stages := BuildStages(rules)

	require.Len(t, stages, 2)
	// Составы на одном порядке объединяются
	assert.Equal(t, []string{"m1", "m3"}, stages[0].Approvers)
	// m2 встречается на порядке 2 в обоих правилах — остается один раз
	assert.Equal(t, []string{"m2"}, stages[1].Approvers)
}

func TestBuildStagesKeepsApproverAtFirstStageOnly(t *testing.T) {
	rules := []domain.ApprovalRule{
		{
			RuleType:              domain.RulePercentage,
			Approvers:             []string{"m1"},
			MinApprovalPercentage: 50,
		},
		{
			RuleType:              domain.RulePercentage,
			Approvers:             []string{"x", "m1"},
			MinApprovalPercentage: 50,
		},
	}

	stages := BuildStages(rules)

	// m1 закреплен за этапом 1; его повтор на этапе 2 выброшен,
	// этапы перенумерованы без дыр
	require.Len(t, stages, 1)
	assert.ElementsMatch(t, []string{"m1", "x"}, stages[0].Approvers)
	assert.Equal(t, 1, stages[0].Order)
}

func TestBuildStagesRenumbersAfterDroppingEmptyStage(t *testing.T) {
	rules := []domain.ApprovalRule{
		{
			RuleType: domain.RulePercentage,
			ApproverSequence: []domain.SequenceStep{
				{ApproverID: "a", Order: 1},
				{ApproverID: "a", Order: 2}, // этап 2 целиком схлопнется
				{ApproverID: "b", Order: 5}, // дыра в нумерации
			},
			MinApprovalPercentage: 50,
		},
	}

	stages := BuildStages(rules)

	require.Len(t, stages, 2)
	assert.Equal(t, 1, stages[0].Order)
	assert.Equal(t, []string{"a"}, stages[0].Approvers)
	assert.Equal(t, 2, stages[1].Order)
	assert.Equal(t, []string{"b"}, stages[1].Approvers)
}

func TestFallbackStage(t *testing.T) {
	directory := map[string]domain.User{
		"emp": {ID: "emp", Role: domain.RoleEmployee},
		"mgr": {ID: "mgr", Role: domain.RoleManager},
		"adm": {ID: "adm", Role: domain.RoleAdmin},
	}

	stages := FallbackStage(directory)

	require.Len(t, stages, 1)
	assert.Equal(t, 1, stages[0].Order)
	assert.Equal(t, []string{"adm", "mgr"}, stages[0].Approvers)
}

func TestFallbackStageNoEligibleUsers(t *testing.T) {
	directory := map[string]domain.User{
		"emp": {ID: "emp", Role: domain.RoleEmployee},
	}
	assert.Nil(t, FallbackStage(directory))
}
