package risk

import (
	"errors"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestRuleDefaultExpression(t *testing.T) {
	rule, err := NewRule("risk_score > threshold")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if rule.Expression() != "risk_score > threshold" {
		t.Errorf("expression = %q", rule.Expression())
	}

	tests := []struct {
		name  string
		score float64
		want  bool
	}{
		{"Above", 0.3, true},
		{"Below", 0.1, false},
		{"Exact", 0.15, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.Match(domain.RiskRecord{AccountID: "U0001", Score: tt.score}, 0.15)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if got != tt.want {
				t.Errorf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleSeesAllSignals(t *testing.T) {
	rule, err := NewRule(`device_risk >= 0.5 && age_risk > 0.2 && account_id.startsWith("U")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	rec := domain.RiskRecord{AccountID: "U0001", DeviceRisk: 0.6, AgeRisk: 0.3}
	if got, err := rule.Match(rec, 0.15); err != nil || !got {
		t.Errorf("match = %v, %v", got, err)
	}
	rec.AgeRisk = 0.1
	if got, err := rule.Match(rec, 0.15); err != nil || got {
		t.Errorf("match = %v, %v", got, err)
	}
}

func TestRuleFlagPassthrough(t *testing.T) {
	rule, err := NewRule("is_flagged")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got, _ := rule.Match(domain.RiskRecord{Flagged: true}, 0); !got {
		t.Error("flagged record should match")
	}
	if got, _ := rule.Match(domain.RiskRecord{}, 0); got {
		t.Error("unflagged record should not match")
	}
}

func TestRuleRejectsBadExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"NonBool", "risk_score + 1.0"},
		{"Syntax", "risk_score >"},
		{"UnknownVariable", "mystery_signal > 0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRule(tt.expr); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}
