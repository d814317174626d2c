package devices

import (
	"reflect"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestAnalyze(t *testing.T) {
	groups := []domain.SharedDeviceGroup{
		{DeviceID: "D0001", AccountIDs: []string{"U0001", "U0002"}},
		{DeviceID: "D0002", AccountIDs: []string{"U0003", "U0004", "U0005"}},
		{DeviceID: "D0003", AccountIDs: []string{"U0002", "U0005"}},
	}
	accounts := map[string]domain.Account{
		"U0001": {ID: "U0001", IsFraud: true},
		"U0002": {ID: "U0002", IsFraud: true},
		"U0003": {ID: "U0003", IsFraud: true},
		"U0004": {ID: "U0004"},
		"U0005": {ID: "U0005"},
	}

	records := Analyze(groups, accounts)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// D0001 ratio 1.0, D0002 1/3, D0003 0.5.
	wantOrder := []string{"D0001", "D0003", "D0002"}
	for i, want := range wantOrder {
		if records[i].DeviceID != want {
			t.Errorf("records[%d] = %s, want %s", i, records[i].DeviceID, want)
		}
	}
	top := records[0]
	if top.AccountCount != 2 || top.FraudCount != 2 || top.FraudRatio != 1.0 {
		t.Errorf("top record = %+v", top)
	}
}

func TestAnalyzeTiesKeepDeviceOrder(t *testing.T) {
	groups := []domain.SharedDeviceGroup{
		{DeviceID: "D0001", AccountIDs: []string{"U0001", "U0002"}},
		{DeviceID: "D0002", AccountIDs: []string{"U0003", "U0004"}},
	}
	accounts := map[string]domain.Account{
		"U0001": {IsFraud: true}, "U0002": {}, "U0003": {IsFraud: true}, "U0004": {},
	}
	records := Analyze(groups, accounts)
	if records[0].DeviceID != "D0001" || records[1].DeviceID != "D0002" {
		t.Errorf("tied ratios reordered: %+v", records)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	if got := Analyze(nil, nil); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestRiskIndex(t *testing.T) {
	records := []domain.SharedDeviceRecord{
		{DeviceID: "D0001", AccountIDs: []string{"U0001", "U0002"}, FraudRatio: 1.0},
		{DeviceID: "D0003", AccountIDs: []string{"U0002", "U0005"}, FraudRatio: 0.5},
		{DeviceID: "D0002", AccountIDs: []string{"U0005", "U0006"}, FraudRatio: 0},
	}
	got := RiskIndex(records)
	want := map[string]float64{"U0001": 1, "U0002": 1, "U0005": 0.5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
