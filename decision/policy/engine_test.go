package policy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"income-tax/decision/compare"
	"income-tax/decision/tax"
)

func computeResult(t *testing.T, in tax.TaxInput) (*tax.TaxResult, *compare.Comparison) {
	t.Helper()
	calc := tax.NewCalculator(nil)
	result, err := calc.Compute(in)
	require.NoError(t, err)
	cmp, err := compare.Compare(calc, in)
	require.NoError(t, err)
	return result, cmp
}

func TestEvaluateDefaultPolicies(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	// old regime at 1.5M pays 262,500 against 140,000 under the new regime
	result, cmp := computeResult(t, tax.TaxInput{Income: decimal.NewFromInt(1500000), Regime: tax.RegimeOld})

	eval, err := engine.Evaluate(context.Background(), EvaluationRequest{Result: result, Comparison: cmp})
	require.NoError(t, err)
	assert.Equal(t, DecisionWarn, eval.Decision)
	require.Len(t, eval.Warnings, 1)
	assert.Contains(t, eval.Warnings[0].Message, "New (fy2024-25) saves 122,500.00")
	assert.Equal(t, 1, eval.PoliciesRan)

	eval, err = engine.Evaluate(context.Background(), EvaluationRequest{Result: result})
	require.NoError(t, err)
	assert.Equal(t, DecisionPass, eval.Decision)
}

func TestEvaluateThresholdPolicies(t *testing.T) {
	result, _ := computeResult(t, tax.TaxInput{Income: decimal.NewFromInt(1000000), Regime: tax.RegimeOld})

	tests := []struct {
		name         string
		policy       Policy
		wantDecision Decision
		wantMessage  string
	}{
		{
			name:         "tax above limit denies",
			policy:       Policy{ID: "max-tax", Name: "Max Tax", Type: PolicyTypeTaxLimit, Severity: SeverityError, Threshold: 100000, Enabled: true},
			wantDecision: DecisionDeny,
			wantMessage:  "Total tax (112,500.00) exceeds limit (100,000.00)",
		},
		{
			name:         "tax below limit passes",
			policy:       Policy{ID: "max-tax", Type: PolicyTypeTaxLimit, Severity: SeverityError, Threshold: 200000, Enabled: true},
			wantDecision: DecisionPass,
		},
		{
			name:         "effective rate warns",
			policy:       Policy{ID: "max-rate", Type: PolicyTypeEffectiveRate, Severity: SeverityWarning, Threshold: 10, Enabled: true},
			wantDecision: DecisionWarn,
			wantMessage:  "Effective rate (11.25%) exceeds limit (10%)",
		},
		{
			name:         "disabled policy is skipped",
			policy:       Policy{ID: "max-rate", Type: PolicyTypeEffectiveRate, Severity: SeverityError, Threshold: 1, Enabled: false},
			wantDecision: DecisionPass,
		},
		{
			name:         "custom expression",
			policy:       Policy{ID: "top-slab", Description: "Income reaches the 20% slab", Type: PolicyTypeCustom, Severity: SeverityError, Expression: `result.marginal_rate >= 0.2 && result.regime == "old"`, Enabled: true},
			wantDecision: DecisionDeny,
			wantMessage:  "Income reaches the 20% slab",
		},
		{
			name:         "custom expression not matched",
			policy:       Policy{ID: "rebate", Type: PolicyTypeCustom, Severity: SeverityWarning, Expression: `result.rebate_applied`, Enabled: true},
			wantDecision: DecisionPass,
		},
		{
			name:         "info never changes the decision",
			policy:       Policy{ID: "info", Type: PolicyTypeCustom, Severity: SeverityInfo, Expression: `result.total_tax > 0`, Enabled: true},
			wantDecision: DecisionPass,
			wantMessage:  "Custom check matched: result.total_tax > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine()
			require.NoError(t, err)
			require.NoError(t, engine.AddPolicy(tt.policy))

			eval, err := engine.Evaluate(context.Background(), EvaluationRequest{Result: result})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, eval.Decision)

			var messages []string
			for _, v := range eval.Violations {
				messages = append(messages, v.Message)
			}
			for _, w := range eval.Warnings {
				messages = append(messages, w.Message)
			}
			if tt.wantMessage == "" {
				assert.Empty(t, messages)
			} else {
				assert.Contains(t, messages, tt.wantMessage)
			}
		})
	}
}

func TestAddPolicyErrors(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{"missing id", Policy{Type: PolicyTypeTaxLimit}, "policy id is required"},
		{"duplicate id", Policy{ID: "cheaper-regime", Type: PolicyTypeTaxLimit}, "already exists"},
		{"unknown type", Policy{ID: "x", Type: PolicyType("carbon_budget")}, "unknown policy type"},
		{"syntax error", Policy{ID: "x", Type: PolicyTypeCustom, Expression: "result.total_tax >"}, "compile error"},
		{"non bool", Policy{ID: "x", Type: PolicyTypeCustom, Expression: `"tax"`}, "must evaluate to a bool"},
		{"unknown variable", Policy{ID: "x", Type: PolicyTypeCustom, Expression: "income > 5"}, "compile error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.AddPolicy(tt.policy)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.Len(t, engine.Policies(), 1)
}

func TestEvaluateRequiresResult(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate(context.Background(), EvaluationRequest{})
	assert.Error(t, err)
}
