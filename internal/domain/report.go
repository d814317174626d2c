package domain

import (
	"fmt"
	"math"
	"time"
)

// RiskWeights holds the weighted-sum coefficients for the six risk
// signals. Weights must be non-negative and sum to 1.
type RiskWeights struct {
	PageRank    float64 `json:"pagerank"`
	Betweenness float64 `json:"betweenness"`
	DeviceRisk  float64 `json:"device_risk"`
	AgeRisk     float64 `json:"age_risk"`
	AmountRisk  float64 `json:"amount_risk"`
	VolumeRisk  float64 `json:"volume_risk"`
}

// DefaultRiskWeights returns the standard signal weighting.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		PageRank:    0.05,
		Betweenness: 0.05,
		DeviceRisk:  0.35,
		AgeRisk:     0.25,
		AmountRisk:  0.20,
		VolumeRisk:  0.10,
	}
}

// Sum returns the total of all six weights.
func (w RiskWeights) Sum() float64 {
	return w.PageRank + w.Betweenness + w.DeviceRisk + w.AgeRisk + w.AmountRisk + w.VolumeRisk
}

// Validate rejects negative weights and totals away from 1.
func (w RiskWeights) Validate() error {
	for name, v := range map[string]float64{
		"pagerank":    w.PageRank,
		"betweenness": w.Betweenness,
		"device_risk": w.DeviceRisk,
		"age_risk":    w.AgeRisk,
		"amount_risk": w.AmountRisk,
		"volume_risk": w.VolumeRisk,
	} {
		if v < 0 {
			return fmt.Errorf("%w: weight %s is negative", ErrInvalidInput, name)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %.6f, want 1", ErrInvalidInput, w.Sum())
	}
	return nil
}

// RiskRecord is one account's scored row: the six normalized signals,
// the weighted score, and the flag decision. IsFraud carries the ground
// truth label for evaluation only; it never feeds the score.
type RiskRecord struct {
	AccountID   string  `json:"account_id"`
	PageRank    float64 `json:"pagerank_norm"`
	Betweenness float64 `json:"betweenness_norm"`
	DeviceRisk  float64 `json:"device_risk"`
	AgeRisk     float64 `json:"age_risk"`
	AmountRisk  float64 `json:"amount_risk"`
	VolumeRisk  float64 `json:"volume_risk"`
	Score       float64 `json:"risk_score"`
	Flagged     bool    `json:"flagged"`
	IsFraud     bool    `json:"is_fraud_label"`
}

// CentralityRecord is one account's raw centrality measures.
type CentralityRecord struct {
	AccountID   string  `json:"account_id"`
	PageRank    float64 `json:"pagerank"`
	Betweenness float64 `json:"betweenness"`
	Degree      int     `json:"degree"`
	InDegree    int     `json:"in_degree"`
	OutDegree   int     `json:"out_degree"`
}

// CommunityStat summarizes one detected community.
type CommunityStat struct {
	CommunityID int      `json:"community_id"`
	Size        int      `json:"size"`
	FraudCount  int      `json:"fraud_count"`
	FraudRatio  float64  `json:"fraud_ratio"`
	AccountIDs  []string `json:"account_ids"`
}

// SharedDeviceRecord is one multi-account device with its fraud makeup.
type SharedDeviceRecord struct {
	DeviceID     string   `json:"device_id"`
	AccountIDs   []string `json:"account_ids"`
	AccountCount int      `json:"account_count"`
	FraudCount   int      `json:"fraud_count"`
	FraudRatio   float64  `json:"fraud_ratio"`
}

// VelocityRecord is one account's densest burst of outgoing completed
// transfers inside the analyzer's sliding window.
type VelocityRecord struct {
	AccountID     string    `json:"account_id"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	TransferCount int       `json:"transfer_count"`
	TotalAmount   float64   `json:"total_amount"`
}

// Evaluation compares flag decisions against ground truth labels.
// Metrics with a zero denominator are reported as 0.
type Evaluation struct {
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// Report is the full output of one analysis pass.
type Report struct {
	ID             string               `json:"id"`
	BuildID        string               `json:"build_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	DurationMs     int64                `json:"duration_ms"`
	Statistics     GraphStatistics      `json:"statistics"`
	Communities    map[string]int       `json:"communities"`
	CommunityStats []CommunityStat      `json:"community_stats"`
	TopPageRank    []CentralityRecord   `json:"top_pagerank"`
	TopBetweenness []CentralityRecord   `json:"top_betweenness"`
	SharedDevices  []SharedDeviceRecord `json:"shared_devices"`
	Velocity       []VelocityRecord     `json:"velocity"`
	Risk           []RiskRecord         `json:"risk"`
	HighRisk       []RiskRecord         `json:"high_risk"`
	Threshold      float64              `json:"threshold"`
	Weights        RiskWeights          `json:"weights"`
	Evaluation     Evaluation           `json:"evaluation"`
}

// Round3 rounds to three decimal places, the precision reported for
// evaluation metrics and ratios.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
