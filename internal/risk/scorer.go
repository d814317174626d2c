// Package risk fuses the graph and tabular signals into one bounded
// composite score per account.
package risk

import (
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// Inputs carries everything one scoring pass reads. Transfers are the
// raw rows across every status. The signal maps may omit accounts;
// missing entries score zero on that signal.
type Inputs struct {
	Accounts    []domain.Account
	Transfers   []domain.Transfer
	PageRank    map[string]float64
	Betweenness map[string]float64
	DeviceRisk  map[string]float64
}

// Score produces exactly one record per account, ordered by descending
// composite score with account id breaking ties. PageRank and
// betweenness normalize against the batch maximum (zero max leaves the
// signal zero); the tabular signals follow fixed piecewise-linear ramps.
// Flagged marks scores strictly above the threshold.
func Score(in Inputs, weights domain.RiskWeights, threshold float64) ([]domain.RiskRecord, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	outCount := make(map[string]int)
	outSum := make(map[string]float64)
	for _, t := range in.Transfers {
		outCount[t.SenderID]++
		outSum[t.SenderID] += t.Amount
	}

	prMax := maxValue(in.PageRank)
	btMax := maxValue(in.Betweenness)

	records := make([]domain.RiskRecord, 0, len(in.Accounts))
	for _, a := range in.Accounts {
		rec := domain.RiskRecord{AccountID: a.ID, IsFraud: a.IsFraud}
		if prMax > 0 {
			rec.PageRank = in.PageRank[a.ID] / prMax
		}
		if btMax > 0 {
			rec.Betweenness = in.Betweenness[a.ID] / btMax
		}
		rec.DeviceRisk = clip01(in.DeviceRisk[a.ID])

		age := a.AgeDays
		if age > 90 {
			age = 90
		}
		rec.AgeRisk = clip01(float64(90-age) / 90)

		if n := outCount[a.ID]; n > 0 {
			mean := outSum[a.ID] / float64(n)
			rec.AmountRisk = clip01((mean - 500) / 2500)
			rec.VolumeRisk = clip01((float64(n) - 7) / 15)
		}

		rec.Score = weights.PageRank*rec.PageRank +
			weights.Betweenness*rec.Betweenness +
			weights.DeviceRisk*rec.DeviceRisk +
			weights.AgeRisk*rec.AgeRisk +
			weights.AmountRisk*rec.AmountRisk +
			weights.VolumeRisk*rec.VolumeRisk
		rec.Flagged = rec.Score > threshold
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].AccountID < records[j].AccountID
	})
	return records, nil
}

func maxValue(m map[string]float64) float64 {
	max := 0.0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
