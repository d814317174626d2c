package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreSignals(t *testing.T) {
	in := Inputs{
		Accounts: []domain.Account{
			{ID: "U0001", AgeDays: 45, IsFraud: true},
			{ID: "U0002", AgeDays: 900},
		},
		PageRank:    map[string]float64{"U0001": 0.3, "U0002": 0.6},
		Betweenness: map[string]float64{"U0001": 0, "U0002": 0},
		DeviceRisk:  map[string]float64{"U0001": 1.0},
	}
	for i := 0; i < 10; i++ {
		in.Transfers = append(in.Transfers, domain.Transfer{
			SenderID: "U0001", ReceiverID: "U0002", Amount: 1000, Status: domain.TransferCompleted,
		})
	}

	records, err := Score(in, domain.DefaultRiskWeights(), 0.15)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	top := records[0]
	if top.AccountID != "U0001" {
		t.Fatalf("top record is %s, want U0001", top.AccountID)
	}
	if !almost(top.PageRank, 0.5) || !almost(top.Betweenness, 0) {
		t.Errorf("graph norms = %f/%f", top.PageRank, top.Betweenness)
	}
	if !almost(top.DeviceRisk, 1.0) || !almost(top.AgeRisk, 0.5) {
		t.Errorf("device/age = %f/%f", top.DeviceRisk, top.AgeRisk)
	}
	if !almost(top.AmountRisk, 0.2) || !almost(top.VolumeRisk, 0.2) {
		t.Errorf("amount/volume = %f/%f", top.AmountRisk, top.VolumeRisk)
	}
	if !almost(top.Score, 0.56) {
		t.Errorf("score = %f, want 0.56", top.Score)
	}
	if !top.Flagged || !top.IsFraud {
		t.Errorf("flags = %+v", top)
	}

	second := records[1]
	if second.AccountID != "U0002" || !almost(second.Score, 0.05) || second.Flagged {
		t.Errorf("second record = %+v", second)
	}
	// No outgoing rows means zero transfer signals.
	if second.AmountRisk != 0 || second.VolumeRisk != 0 {
		t.Errorf("receiver picked up transfer signals: %+v", second)
	}
}

func TestScoreBounds(t *testing.T) {
	in := Inputs{
		Accounts: []domain.Account{
			{ID: "U0001", AgeDays: 0},
			{ID: "U0002", AgeDays: -5},
		},
		PageRank:    map[string]float64{"U0001": 0.5},
		Betweenness: map[string]float64{"U0001": 0.2},
		DeviceRisk:  map[string]float64{"U0001": 5.0},
	}
	for i := 0; i < 30; i++ {
		in.Transfers = append(in.Transfers, domain.Transfer{
			SenderID: "U0001", ReceiverID: "U0002", Amount: 1e9, Status: domain.TransferCompleted,
		})
	}

	records, err := Score(in, domain.DefaultRiskWeights(), 0.15)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, rec := range records {
		for name, v := range map[string]float64{
			"pagerank": rec.PageRank, "betweenness": rec.Betweenness,
			"device": rec.DeviceRisk, "age": rec.AgeRisk,
			"amount": rec.AmountRisk, "volume": rec.VolumeRisk,
			"score": rec.Score,
		} {
			if v < 0 || v > 1 {
				t.Errorf("%s: %s = %f out of [0,1]", rec.AccountID, name, v)
			}
		}
	}
	// Every signal maxed out sums the weights exactly.
	if !almost(records[0].Score, 1.0) {
		t.Errorf("saturated score = %f, want 1", records[0].Score)
	}
}

func TestScoreOneRecordPerAccount(t *testing.T) {
	in := Inputs{
		Accounts: []domain.Account{
			{ID: "U0003", AgeDays: 100},
			{ID: "U0001", AgeDays: 100},
			{ID: "U0002", AgeDays: 100},
		},
	}
	records, err := Score(in, domain.DefaultRiskWeights(), 0.15)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// Identical scores fall back to account id order.
	for i, want := range []string{"U0001", "U0002", "U0003"} {
		if records[i].AccountID != want {
			t.Errorf("records[%d] = %s, want %s", i, records[i].AccountID, want)
		}
	}
}

func TestScoreThresholdMonotonic(t *testing.T) {
	in := Inputs{
		Accounts: []domain.Account{
			{ID: "U0001", AgeDays: 5},
			{ID: "U0002", AgeDays: 50},
			{ID: "U0003", AgeDays: 500},
		},
		DeviceRisk: map[string]float64{"U0001": 1.0, "U0002": 0.5},
	}
	loose, err := Score(in, domain.DefaultRiskWeights(), 0.1)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	strict, err := Score(in, domain.DefaultRiskWeights(), 0.5)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	looseFlagged := map[string]bool{}
	for _, rec := range loose {
		if rec.Flagged {
			looseFlagged[rec.AccountID] = true
		}
	}
	for _, rec := range strict {
		if rec.Flagged && !looseFlagged[rec.AccountID] {
			t.Errorf("%s flagged at 0.5 but not at 0.1", rec.AccountID)
		}
	}
	if len(looseFlagged) == 0 {
		t.Error("fixture should flag someone at 0.1")
	}
}

func TestScoreCountsEveryStatus(t *testing.T) {
	in := Inputs{
		Accounts: []domain.Account{{ID: "U0001", AgeDays: 500}},
	}
	for i := 0; i < 8; i++ {
		in.Transfers = append(in.Transfers, domain.Transfer{
			SenderID: "U0001", ReceiverID: "U0001", Amount: 500, Status: domain.TransferPending,
		})
	}
	records, err := Score(in, domain.DefaultRiskWeights(), 0.15)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// 8 raw outgoing rows, pending included: (8-7)/15.
	if want := 1.0 / 15.0; !almost(records[0].VolumeRisk, want) {
		t.Errorf("volume risk = %f, want %f", records[0].VolumeRisk, want)
	}
}

func TestScoreInvalidWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights domain.RiskWeights
	}{
		{"SumBelowOne", domain.RiskWeights{PageRank: 0.5}},
		{"Negative", domain.RiskWeights{PageRank: -0.2, Betweenness: 0.4, DeviceRisk: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(Inputs{}, tt.weights, 0.15)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}
