package risk

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// Evaluate measures the flag rule at the given threshold against the
// ground-truth labels. Flagging recomputes from the scores so callers
// can probe thresholds other than the one the records were built with.
// Zero denominators yield zero, never NaN.
func Evaluate(records []domain.RiskRecord, threshold float64) domain.Evaluation {
	var ev domain.Evaluation
	for _, rec := range records {
		flagged := rec.Score > threshold
		switch {
		case flagged && rec.IsFraud:
			ev.TruePositives++
		case flagged && !rec.IsFraud:
			ev.FalsePositives++
		case !flagged && rec.IsFraud:
			ev.FalseNegatives++
		}
	}

	precision, recall, f1 := 0.0, 0.0, 0.0
	if d := ev.TruePositives + ev.FalsePositives; d > 0 {
		precision = float64(ev.TruePositives) / float64(d)
	}
	if d := ev.TruePositives + ev.FalseNegatives; d > 0 {
		recall = float64(ev.TruePositives) / float64(d)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	ev.Precision = domain.Round3(precision)
	ev.Recall = domain.Round3(recall)
	ev.F1 = domain.Round3(f1)
	return ev
}
