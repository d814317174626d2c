package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := GeneratorConfig{
		Accounts:  30,
		Transfers: 100,
		FraudRate: 0.2,
		Rings:     1,
		Seed:      7,
		Start:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	want := Generate(cfg).Dataset

	if err := WriteCSVDir(dir, want); err != nil {
		t.Fatalf("WriteCSVDir failed: %v", err)
	}

	got, err := LoadCSVDir(dir)
	if err != nil {
		t.Fatalf("LoadCSVDir failed: %v", err)
	}

	if len(got.Accounts) != len(want.Accounts) {
		t.Fatalf("expected %d accounts, got %d", len(want.Accounts), len(got.Accounts))
	}
	if len(got.Devices) != len(want.Devices) {
		t.Fatalf("expected %d devices, got %d", len(want.Devices), len(got.Devices))
	}
	if len(got.Links) != len(want.Links) {
		t.Fatalf("expected %d links, got %d", len(want.Links), len(got.Links))
	}
	if len(got.Transfers) != len(want.Transfers) {
		t.Fatalf("expected %d transfers, got %d", len(want.Transfers), len(got.Transfers))
	}

	for i, tr := range got.Transfers {
		orig := want.Transfers[i]
		if tr.ID != orig.ID || tr.SenderID != orig.SenderID || tr.ReceiverID != orig.ReceiverID {
			t.Fatalf("transfer %d mismatch: got %+v, want %+v", i, tr, orig)
		}
		if tr.Amount != orig.Amount {
			t.Errorf("transfer %s amount %.2f, want %.2f", tr.ID, tr.Amount, orig.Amount)
		}
		if !tr.Timestamp.Equal(orig.Timestamp) {
			t.Errorf("transfer %s timestamp %v, want %v", tr.ID, tr.Timestamp, orig.Timestamp)
		}
		if tr.IsFraud != orig.IsFraud || tr.Status != orig.Status {
			t.Errorf("transfer %s labels mismatch: got %+v, want %+v", tr.ID, tr, orig)
		}
	}

	for i, a := range got.Accounts {
		orig := want.Accounts[i]
		if a != orig {
			t.Fatalf("account %d mismatch: got %+v, want %+v", i, a, orig)
		}
	}
}

func TestCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()

	// Header lacks verification_level.
	csv := "account_id,is_fraud_label,account_age_days\nU0001,false,100\n"
	if err := os.WriteFile(filepath.Join(dir, "accounts.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := LoadCSVDir(dir)
	if !errors.Is(err, domain.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestCSVMissingFile(t *testing.T) {
	_, err := LoadCSVDir(t.TempDir())
	if err == nil {
		t.Error("expected error for missing input files")
	}
}

func TestCSVParsesLegacyValues(t *testing.T) {
	dir := t.TempDir()

	// Pandas-style exports: True/False booleans, space-separated timestamps.
	files := map[string]string{
		"accounts.csv":             "account_id,is_fraud_label,account_age_days,verification_level\nU0000,True,45,basic\n",
		"devices.csv":              "device_id,device_type\nD0000,mobile\n",
		"account_device_links.csv": "account_id,device_id\nU0000,D0000\n",
		"transfers.csv":            "transfer_id,sender_id,receiver_id,amount,timestamp,is_fraud_label,status\nT00000,U0000,U0000,99.50,2026-01-02 03:04:05,False,completed\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}

	ds, err := LoadCSVDir(dir)
	if err != nil {
		t.Fatalf("LoadCSVDir failed: %v", err)
	}
	if !ds.Accounts[0].IsFraud {
		t.Error("expected True to parse as fraud label")
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if !ds.Transfers[0].Timestamp.Equal(want) {
		t.Errorf("timestamp %v, want %v", ds.Transfers[0].Timestamp, want)
	}
}
