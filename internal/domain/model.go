// Package domain holds the core types and interfaces shared across Talon.
package domain

import (
	"time"
)

// Verification levels for accounts.
const (
	VerificationBasic    = "basic"
	VerificationVerified = "verified"
	VerificationPremium  = "premium"
)

// Device types.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
)

// Transfer statuses. Only completed transfers enter the analytic graphs;
// the raw table keeps every row for the tabular risk signals.
const (
	TransferCompleted = "completed"
	TransferPending   = "pending"
	TransferFailed    = "failed"
)

// Account is one account-holder row from the accounts table.
// IsFraud is the ground-truth label carried by simulated/evaluation data;
// it is never an input feature at scoring time.
type Account struct {
	ID           string `json:"account_id"`
	IsFraud      bool   `json:"is_fraud_label"`
	AgeDays      int    `json:"account_age_days"`
	Verification string `json:"verification_level"`
}

// Device is one row from the devices table.
type Device struct {
	ID   string `json:"device_id"`
	Type string `json:"device_type"`
}

// DeviceLink is one row from the account_device_links table.
type DeviceLink struct {
	AccountID string `json:"account_id"`
	DeviceID  string `json:"device_id"`
}

// Transfer is one row from the transfers table.
type Transfer struct {
	ID         string    `json:"transfer_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
	IsFraud    bool      `json:"is_fraud_label"`
	Status     string    `json:"status"`
}

// Completed reports whether the transfer belongs in the analytic graphs.
func (t Transfer) Completed() bool {
	return t.Status == TransferCompleted
}

// Dataset is one batch of the four input tables. It is the unit of an
// analysis pass: GraphStore.Build consumes it wholesale and the risk
// scorer reads the raw transfer rows from it.
type Dataset struct {
	Accounts  []Account    `json:"accounts"`
	Devices   []Device     `json:"devices"`
	Links     []DeviceLink `json:"account_device_links"`
	Transfers []Transfer   `json:"transfers"`
}

// AccountIndex returns the accounts keyed by id.
func (d *Dataset) AccountIndex() map[string]Account {
	idx := make(map[string]Account, len(d.Accounts))
	for _, a := range d.Accounts {
		idx[a.ID] = a
	}
	return idx
}

// DeviceIndex returns the devices keyed by id.
func (d *Dataset) DeviceIndex() map[string]Device {
	idx := make(map[string]Device, len(d.Devices))
	for _, dev := range d.Devices {
		idx[dev.ID] = dev
	}
	return idx
}

// FraudAccountIDs returns the ids of all fraud-labeled accounts.
func (d *Dataset) FraudAccountIDs() []string {
	var ids []string
	for _, a := range d.Accounts {
		if a.IsFraud {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
