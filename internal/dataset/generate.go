package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// span of generated transfer timestamps.
const generatedSpan = 180 * 24 * time.Hour

// GeneratorConfig controls synthetic dataset generation.
type GeneratorConfig struct {
	Accounts  int     `json:"accounts"`
	Transfers int     `json:"transfers"`
	FraudRate float64 `json:"fraud_rate"`
	Rings     int     `json:"rings"`
	Seed      int64   `json:"seed"`

	// Start anchors the timestamp window; zero means now minus the
	// full span.
	Start time.Time `json:"start,omitempty"`
}

// DefaultGeneratorConfig returns the standard generation parameters.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Accounts:  200,
		Transfers: 1000,
		FraudRate: 0.02,
		Rings:     3,
		Seed:      42,
	}
}

// Generated holds a synthetic dataset together with the planted fraud
// rings, for inspection by tests and tooling.
type Generated struct {
	Dataset *domain.Dataset `json:"dataset"`
	Rings   [][]string      `json:"rings"`
}

// Generate produces a synthetic P2P payment dataset with planted fraud
// patterns: fraud rings sharing mobile devices, money-mule transfers
// from fraudsters to normal accounts, and dense high-value ring-internal
// transfers. Deterministic for a fixed seed.
func Generate(cfg GeneratorConfig) *Generated {
	rng := rand.New(rand.NewSource(cfg.Seed))

	accounts := generateAccounts(rng, cfg.Accounts, cfg.FraudRate)
	rings := generateRings(rng, accounts, cfg.Rings)
	devices, links := generateDevices(rng, accounts, rings)
	transfers := generateTransfers(rng, accounts, rings, cfg.Transfers, cfg.Start)

	return &Generated{
		Dataset: &domain.Dataset{
			Accounts:  accounts,
			Devices:   devices,
			Links:     links,
			Transfers: transfers,
		},
		Rings: rings,
	}
}

// generateAccounts creates account entities. The first accounts*rate
// accounts are fraudsters: young and unverified.
func generateAccounts(rng *rand.Rand, n int, fraudRate float64) []domain.Account {
	nFraud := int(float64(n) * fraudRate)
	verifications := []string{
		domain.VerificationBasic,
		domain.VerificationVerified,
		domain.VerificationPremium,
	}

	accounts := make([]domain.Account, 0, n)
	for i := 0; i < n; i++ {
		a := domain.Account{
			ID:      fmt.Sprintf("U%04d", i),
			IsFraud: i < nFraud,
		}
		if a.IsFraud {
			a.AgeDays = randInt(rng, 1, 90)
			a.Verification = domain.VerificationBasic
		} else {
			a.AgeDays = randInt(rng, 1, 1000)
			a.Verification = verifications[rng.Intn(len(verifications))]
		}
		accounts = append(accounts, a)
	}
	return accounts
}

// generateRings groups fraudsters into rings of 3-7 members. Rings are
// disjoint; fraudsters left over act alone.
func generateRings(rng *rand.Rand, accounts []domain.Account, nRings int) [][]string {
	var fraudsters []string
	for _, a := range accounts {
		if a.IsFraud {
			fraudsters = append(fraudsters, a.ID)
		}
	}
	rng.Shuffle(len(fraudsters), func(i, j int) {
		fraudsters[i], fraudsters[j] = fraudsters[j], fraudsters[i]
	})

	var rings [][]string
	for i := 0; i < nRings; i++ {
		size := randInt(rng, 3, 7)
		if len(fraudsters) >= size {
			ring := append([]string(nil), fraudsters[:size]...)
			fraudsters = fraudsters[size:]
			rings = append(rings, ring)
		}
	}
	return rings
}

// generateDevices creates device entities and account-device links:
// normal accounts get 1-2 individual devices, each ring shares 1-3
// mobile devices across every member, and ringless fraudsters get one
// mobile device each.
func generateDevices(rng *rand.Rand, accounts []domain.Account, rings [][]string) ([]domain.Device, []domain.DeviceLink) {
	var devices []domain.Device
	var links []domain.DeviceLink
	types := []string{domain.DeviceMobile, domain.DeviceDesktop, domain.DeviceTablet}

	next := 0
	newDevice := func(deviceType string) string {
		id := fmt.Sprintf("D%04d", next)
		next++
		devices = append(devices, domain.Device{ID: id, Type: deviceType})
		return id
	}

	inRing := make(map[string]bool)
	for _, ring := range rings {
		for _, id := range ring {
			inRing[id] = true
		}
	}

	for _, a := range accounts {
		if a.IsFraud {
			continue
		}
		for i := 0; i < randInt(rng, 1, 2); i++ {
			id := newDevice(types[rng.Intn(len(types))])
			links = append(links, domain.DeviceLink{AccountID: a.ID, DeviceID: id})
		}
	}

	for _, ring := range rings {
		var shared []string
		for i := 0; i < randInt(rng, 1, 3); i++ {
			shared = append(shared, newDevice(domain.DeviceMobile))
		}
		for _, accountID := range ring {
			for _, deviceID := range shared {
				links = append(links, domain.DeviceLink{AccountID: accountID, DeviceID: deviceID})
			}
		}
	}

	for _, a := range accounts {
		if !a.IsFraud || inRing[a.ID] {
			continue
		}
		id := newDevice(domain.DeviceMobile)
		links = append(links, domain.DeviceLink{AccountID: a.ID, DeviceID: id})
	}

	return devices, links
}

// generateTransfers creates n transfers, roughly 30% fraudulent. Fraud
// transfers are high-value and follow either a money-mule pattern
// (fraudster to random normal account) or stay ring-internal. Output is
// sorted by timestamp; ids keep creation order.
func generateTransfers(rng *rand.Rand, accounts []domain.Account, rings [][]string, n int, start time.Time) []domain.Transfer {
	if start.IsZero() {
		start = time.Now().UTC().Add(-generatedSpan)
	}
	spanMinutes := int(generatedSpan / time.Minute)

	var fraudsters, normal []string
	for _, a := range accounts {
		if a.IsFraud {
			fraudsters = append(fraudsters, a.ID)
		} else {
			normal = append(normal, a.ID)
		}
	}

	ringOf := make(map[string][]string)
	for _, ring := range rings {
		for _, id := range ring {
			ringOf[id] = ring
		}
	}

	statuses := []string{
		domain.TransferCompleted,
		domain.TransferCompleted,
		domain.TransferCompleted,
		domain.TransferPending,
	}

	transfers := make([]domain.Transfer, 0, n)
	for i := 0; i < n; i++ {
		var sender, receiver string
		var amount float64
		var isFraud bool

		switch {
		case rng.Float64() < 0.3 && len(fraudsters) > 0:
			sender = fraudsters[rng.Intn(len(fraudsters))]
			if rng.Float64() < 0.6 && len(normal) > 0 {
				// Money mule pattern
				receiver = normal[rng.Intn(len(normal))]
			} else if ring := ringOf[sender]; len(ring) > 0 {
				receiver = ring[rng.Intn(len(ring))]
			} else {
				receiver = fraudsters[rng.Intn(len(fraudsters))]
			}
			amount = randFloat(rng, 100, 5000)
			isFraud = true
		case len(normal) > 1:
			sender = normal[rng.Intn(len(normal))]
			receiver = normal[rng.Intn(len(normal))]
			for receiver == sender {
				receiver = normal[rng.Intn(len(normal))]
			}
			amount = randFloat(rng, 5, 500)
		default:
			continue
		}

		transfers = append(transfers, domain.Transfer{
			ID:         fmt.Sprintf("T%05d", i),
			SenderID:   sender,
			ReceiverID: receiver,
			Amount:     math.Round(amount*100) / 100,
			Timestamp:  start.Add(time.Duration(rng.Intn(spanMinutes+1)) * time.Minute),
			IsFraud:    isFraud,
			Status:     statuses[rng.Intn(len(statuses))],
		})
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].Timestamp.Before(transfers[j].Timestamp)
	})
	return transfers
}

func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

func randFloat(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
