package risk

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/talon/internal/domain"
)

// Rule is a compiled CEL expression deciding which scored accounts raise
// alerts on the event bus. The expression sees the composite score, the
// six component signals, the configured threshold and the flag state,
// and must produce a bool.
type Rule struct {
	expr    string
	program cel.Program
}

// NewRule compiles the expression once; evaluation reuses the program.
func NewRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("account_id", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("threshold", cel.DoubleType),
		cel.Variable("is_flagged", cel.BoolType),
		cel.Variable("pagerank_norm", cel.DoubleType),
		cel.Variable("betweenness_norm", cel.DoubleType),
		cel.Variable("device_risk", cel.DoubleType),
		cel.Variable("age_risk", cel.DoubleType),
		cel.Variable("amount_risk", cel.DoubleType),
		cel.Variable("volume_risk", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create alert rule environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: compile alert rule: %v", domain.ErrInvalidInput, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: alert rule must return bool, got %s", domain.ErrInvalidInput, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create alert rule program: %w", err)
	}
	return &Rule{expr: expr, program: program}, nil
}

// Expression returns the source expression the rule was compiled from.
func (r *Rule) Expression() string {
	return r.expr
}

// Match evaluates the rule against one scored record.
func (r *Rule) Match(rec domain.RiskRecord, threshold float64) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"account_id":       rec.AccountID,
		"risk_score":       rec.Score,
		"threshold":        threshold,
		"is_flagged":       rec.Flagged,
		"pagerank_norm":    rec.PageRank,
		"betweenness_norm": rec.Betweenness,
		"device_risk":      rec.DeviceRisk,
		"age_risk":         rec.AgeRisk,
		"amount_risk":      rec.AmountRisk,
		"volume_risk":      rec.VolumeRisk,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate alert rule: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: alert rule produced %T, want bool", domain.ErrInvalidInput, out.Value())
	}
	return matched, nil
}
