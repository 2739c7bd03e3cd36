// Package policy evaluates tax checks against computation results
// Built-in checks cover tax and rate ceilings and regime savings; custom checks are CEL expressions
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"income-tax/decision/compare"
	"income-tax/decision/tax"
)

// PolicyType defines the type of policy
type PolicyType string

const (
	PolicyTypeTaxLimit      PolicyType = "tax_limit"
	PolicyTypeEffectiveRate PolicyType = "effective_rate"
	PolicyTypeRegimeSavings PolicyType = "regime_savings"
	PolicyTypeCustom        PolicyType = "custom"
)

// Severity defines policy violation severity
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Decision is the policy evaluation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// celCostLimit bounds the work a single custom expression may do
const celCostLimit = 1000000

// Policy defines a check. Threshold is an amount for tax_limit and
// regime_savings and a percentage for effective_rate.
type Policy struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        PolicyType `json:"type"`
	Severity    Severity   `json:"severity"`
	Threshold   float64    `json:"threshold"`
	Expression  string     `json:"expression,omitempty"`
	Enabled     bool       `json:"enabled"`
}

// Violation represents a policy violation
type Violation struct {
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
}

// Warning represents a policy warning
type Warning struct {
	PolicyID string `json:"policy_id"`
	Message  string `json:"message"`
}

// EvaluationRequest contains the input for policy evaluation
type EvaluationRequest struct {
	Result     *tax.TaxResult
	Comparison *compare.Comparison
}

// EvaluationResult contains the policy evaluation outcome
type EvaluationResult struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	Warnings    []Warning   `json:"warnings"`
	PoliciesRan int         `json:"policies_ran"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Engine evaluates policies against tax results
type Engine struct {
	policies []Policy
	env      *cel.Env
	programs map[string]cel.Program
}

// NewEngine creates an engine holding the default policies
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("result", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
	}
	for _, p := range defaultPolicies() {
		if err := e.AddPolicy(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Policies returns the registered policies in evaluation order
func (e *Engine) Policies() []Policy {
	return append([]Policy(nil), e.policies...)
}

// AddPolicy registers a policy, compiling its expression when it is a custom check
func (e *Engine) AddPolicy(p Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy id is required")
	}
	for _, existing := range e.policies {
		if existing.ID == p.ID {
			return fmt.Errorf("policy with ID %s already exists", p.ID)
		}
	}

	switch p.Type {
	case PolicyTypeTaxLimit, PolicyTypeEffectiveRate, PolicyTypeRegimeSavings:
	case PolicyTypeCustom:
		prog, err := e.compile(p.Expression)
		if err != nil {
			return fmt.Errorf("policy %s: %w", p.ID, err)
		}
		e.programs[p.ID] = prog
	default:
		return fmt.Errorf("policy %s: unknown policy type %q", p.ID, p.Type)
	}

	e.policies = append(e.policies, p)
	return nil
}

func (e *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must evaluate to a bool, got %s", out)
	}

	prog, err := e.env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Evaluate runs all enabled policies against the result
func (e *Engine) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error) {
	if req.Result == nil {
		return nil, fmt.Errorf("evaluation request has no result")
	}

	result := &EvaluationResult{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		Warnings:    make([]Warning, 0),
		EvaluatedAt: time.Now(),
	}
	facts := resultFacts(req.Result, req.Comparison)

	for _, p := range e.policies {
		if !p.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.PoliciesRan++
		message, fired, err := e.evaluatePolicy(p, req, facts)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policy %s: %w", p.ID, err)
		}
		if !fired {
			continue
		}

		switch p.Severity {
		case SeverityError:
			result.Violations = append(result.Violations, Violation{
				PolicyID:   p.ID,
				PolicyName: p.Name,
				Message:    message,
				Severity:   string(p.Severity),
			})
			result.Decision = DecisionDeny
		case SeverityWarning:
			result.Warnings = append(result.Warnings, Warning{PolicyID: p.ID, Message: message})
			if result.Decision == DecisionPass {
				result.Decision = DecisionWarn
			}
		default:
			result.Warnings = append(result.Warnings, Warning{PolicyID: p.ID, Message: message})
		}
	}

	return result, nil
}

func (e *Engine) evaluatePolicy(p Policy, req EvaluationRequest, facts map[string]any) (string, bool, error) {
	r := req.Result
	threshold := decimal.NewFromFloat(p.Threshold)

	switch p.Type {
	case PolicyTypeTaxLimit:
		if r.TotalTax.GreaterThan(threshold) {
			return fmt.Sprintf("Total tax (%s) exceeds limit (%s)",
				tax.FormatAmount(r.TotalTax), tax.FormatAmount(threshold)), true, nil
		}

	case PolicyTypeEffectiveRate:
		rate := r.EffectiveRate.Mul(decimal.NewFromInt(100))
		if rate.GreaterThan(threshold) {
			return fmt.Sprintf("Effective rate (%s%%) exceeds limit (%s%%)",
				rate.StringFixed(2), threshold.String()), true, nil
		}

	case PolicyTypeRegimeSavings:
		cmp := req.Comparison
		if cmp != nil && cmp.Savings.IsPositive() && cmp.Savings.GreaterThan(threshold) {
			return fmt.Sprintf("%s saves %s over the requested %s",
				cmp.Recommended.Label(), tax.FormatAmount(cmp.Savings), cmp.Requested.Label()), true, nil
		}

	case PolicyTypeCustom:
		prog, ok := e.programs[p.ID]
		if !ok {
			return "", false, fmt.Errorf("policy %s is not compiled", p.ID)
		}
		out, _, err := prog.Eval(map[string]any{"result": facts})
		if err != nil {
			return "", false, err
		}
		if matched, ok := out.Value().(bool); ok && matched {
			message := p.Description
			if message == "" {
				message = fmt.Sprintf("Custom check matched: %s", p.Expression)
			}
			return message, true, nil
		}
	}

	return "", false, nil
}

// resultFacts flattens the result into the map custom expressions see
func resultFacts(r *tax.TaxResult, cmp *compare.Comparison) map[string]any {
	savings := 0.0
	if cmp != nil {
		savings = cmp.Savings.InexactFloat64()
	}
	return map[string]any{
		"gross_income":   r.GrossIncome.InexactFloat64(),
		"taxable_income": r.TaxableIncome.InexactFloat64(),
		"total_tax":      r.TotalTax.InexactFloat64(),
		"effective_rate": r.EffectiveRate.InexactFloat64(),
		"marginal_rate":  r.MarginalRate.InexactFloat64(),
		"regime":         string(r.Regime),
		"revision":       r.Revision,
		"rebate_applied": r.RebateApplied,
		"savings":        savings,
	}
}

func defaultPolicies() []Policy {
	return []Policy{
		{
			ID:          "cheaper-regime",
			Name:        "Cheaper Regime Available",
			Description: "Warn when another regime costs less for the same input",
			Type:        PolicyTypeRegimeSavings,
			Severity:    SeverityWarning,
			Threshold:   0,
			Enabled:     true,
		},
	}
}
