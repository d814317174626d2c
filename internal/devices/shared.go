// Package devices analyzes device sharing between accounts, the
// strongest single signal for collusion rings.
package devices

import (
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// Analyze turns shared-device groups into records carrying the
// fraud-labeled member count and the fraud ratio, sorted descending by
// ratio. Equal ratios keep device-id order.
func Analyze(groups []domain.SharedDeviceGroup, accounts map[string]domain.Account) []domain.SharedDeviceRecord {
	records := make([]domain.SharedDeviceRecord, 0, len(groups))
	for _, g := range groups {
		rec := domain.SharedDeviceRecord{
			DeviceID:     g.DeviceID,
			AccountIDs:   g.AccountIDs,
			AccountCount: len(g.AccountIDs),
		}
		for _, id := range g.AccountIDs {
			if accounts[id].IsFraud {
				rec.FraudCount++
			}
		}
		if rec.AccountCount > 0 {
			rec.FraudRatio = float64(rec.FraudCount) / float64(rec.AccountCount)
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FraudRatio > records[j].FraudRatio
	})
	return records
}

// RiskIndex maps each account to its device risk: the highest fraud
// ratio among the shared devices it uses. Accounts only on unshared
// devices never appear and score zero downstream.
func RiskIndex(records []domain.SharedDeviceRecord) map[string]float64 {
	risk := make(map[string]float64)
	for _, rec := range records {
		for _, id := range rec.AccountIDs {
			if rec.FraudRatio > risk[id] {
				risk[id] = rec.FraudRatio
			}
		}
	}
	return risk
}
