package risk

import (
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestEvaluate(t *testing.T) {
	records := []domain.RiskRecord{
		{AccountID: "U0001", Score: 0.8, IsFraud: true},
		{AccountID: "U0002", Score: 0.6, IsFraud: false},
		{AccountID: "U0003", Score: 0.1, IsFraud: true},
		{AccountID: "U0004", Score: 0.05, IsFraud: false},
	}

	t.Run("MidThreshold", func(t *testing.T) {
		ev := Evaluate(records, 0.5)
		if ev.TruePositives != 1 || ev.FalsePositives != 1 || ev.FalseNegatives != 1 {
			t.Fatalf("counts = %+v", ev)
		}
		if ev.Precision != 0.5 || ev.Recall != 0.5 || ev.F1 != 0.5 {
			t.Errorf("metrics = %+v", ev)
		}
	})

	t.Run("AboveMaxThreshold", func(t *testing.T) {
		ev := Evaluate(records, 0.9)
		if ev.TruePositives != 0 || ev.FalsePositives != 0 || ev.FalseNegatives != 2 {
			t.Fatalf("counts = %+v", ev)
		}
		if ev.Precision != 0 || ev.Recall != 0 || ev.F1 != 0 {
			t.Errorf("metrics should all be zero: %+v", ev)
		}
	})

	t.Run("PerfectSplit", func(t *testing.T) {
		ev := Evaluate(records, 0.3)
		// Flags U0001 and U0002: one true positive, one false positive.
		if ev.Recall != 0.5 || ev.Precision != 0.5 {
			t.Errorf("metrics = %+v", ev)
		}
	})

	t.Run("Rounded", func(t *testing.T) {
		three := []domain.RiskRecord{
			{AccountID: "U0001", Score: 0.9, IsFraud: true},
			{AccountID: "U0002", Score: 0.9, IsFraud: false},
			{AccountID: "U0003", Score: 0.9, IsFraud: false},
		}
		ev := Evaluate(three, 0.5)
		if ev.Precision != 0.333 {
			t.Errorf("precision = %f, want 0.333", ev.Precision)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		ev := Evaluate(nil, 0.15)
		if ev != (domain.Evaluation{}) {
			t.Errorf("got %+v, want zero value", ev)
		}
	})
}
