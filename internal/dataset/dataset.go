// Package dataset loads, stores, and synthesizes the tabular input
// tables: accounts, devices, account-device links, and transfers.
// Loaders validate column-exact schemas and report ErrMissingColumn
// before any row is converted.
package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Table names of the tabular input feed.
const (
	TableAccounts  = "accounts"
	TableDevices   = "devices"
	TableLinks     = "account_device_links"
	TableTransfers = "transfers"
)

// Required columns per table. Loaders tolerate extra columns but fail
// when any of these are absent.
var (
	AccountColumns  = []string{"account_id", "is_fraud_label", "account_age_days", "verification_level"}
	DeviceColumns   = []string{"device_id", "device_type"}
	LinkColumns     = []string{"account_id", "device_id"}
	TransferColumns = []string{"transfer_id", "sender_id", "receiver_id", "amount", "timestamp", "is_fraud_label", "status"}
)

// Accepted timestamp layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", domain.ErrInvalidInput, s)
}

func parseBool(s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: unparseable bool %q", domain.ErrInvalidInput, s)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable integer %q", domain.ErrInvalidInput, s)
	}
	return v, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable number %q", domain.ErrInvalidInput, s)
	}
	return v, nil
}

// columnIndex maps each required column to its position in header,
// failing with ErrMissingColumn on the first absent one.
func columnIndex(table string, header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: table %s missing column %s", domain.ErrMissingColumn, table, col)
		}
	}
	return idx, nil
}
