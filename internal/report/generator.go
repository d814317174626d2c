// Package report assembles one full analysis snapshot from a built
// graph store and the raw dataset.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/talon/internal/centrality"
	"github.com/opensource-finance/talon/internal/community"
	"github.com/opensource-finance/talon/internal/devices"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/risk"
	"github.com/opensource-finance/talon/internal/velocity"
)

// Generator runs the detector stack and folds the results into a
// report. Every run recomputes from scratch; nothing carries over.
type Generator struct {
	cfg domain.AnalysisConfig
}

// NewGenerator creates a report generator with the given analysis
// parameters.
func NewGenerator(cfg domain.AnalysisConfig) *Generator {
	return &Generator{cfg: cfg}
}

// Generate runs one complete pass: community detection, centrality,
// shared-device analysis, velocity, risk scoring and evaluation.
func (g *Generator) Generate(store domain.GraphStore, ds *domain.Dataset) (*domain.Report, error) {
	start := time.Now()

	accounts := store.Accounts()
	index := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		index[a.ID] = a
	}

	partition := community.Detect(store.AccountProjection(), g.cfg.Seed)
	commStats := community.Stats(partition, index)

	net := store.TransferNetwork()
	pagerank := centrality.PageRank(net, centrality.Options{
		Damping: g.cfg.PageRankDamping,
		Tol:     g.cfg.PageRankTol,
		MaxIter: g.cfg.PageRankMaxIter,
	})
	betweenness := centrality.Betweenness(net)
	centRecords := centrality.Records(net, pagerank, betweenness)

	shared := devices.Analyze(store.SharedDevices(), index)
	deviceRisk := devices.RiskIndex(shared)

	bursts := velocity.Analyze(ds.Transfers, velocity.Options{
		Window:    g.cfg.VelocityWindow,
		MinCount:  g.cfg.VelocityMinCount,
		MinAmount: g.cfg.VelocityMinAmount,
	})

	riskRecords, err := risk.Score(risk.Inputs{
		Accounts:    accounts,
		Transfers:   ds.Transfers,
		PageRank:    pagerank,
		Betweenness: betweenness,
		DeviceRisk:  deviceRisk,
	}, g.cfg.Weights, g.cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("score accounts: %w", err)
	}

	var highRisk []domain.RiskRecord
	for _, rec := range riskRecords {
		if rec.Flagged {
			highRisk = append(highRisk, rec)
		}
	}

	return &domain.Report{
		ID:             uuid.NewString(),
		BuildID:        store.BuildID(),
		GeneratedAt:    time.Now().UTC(),
		DurationMs:     time.Since(start).Milliseconds(),
		Statistics:     store.Statistics(),
		Communities:    partition,
		CommunityStats: commStats,
		TopPageRank:    topBy(centRecords, g.cfg.TopN, func(r domain.CentralityRecord) float64 { return r.PageRank }),
		TopBetweenness: topBy(centRecords, g.cfg.TopN, func(r domain.CentralityRecord) float64 { return r.Betweenness }),
		SharedDevices:  shared,
		Velocity:       bursts,
		Risk:           riskRecords,
		HighRisk:       highRisk,
		Threshold:      g.cfg.Threshold,
		Weights:        g.cfg.Weights,
		Evaluation:     risk.Evaluate(riskRecords, g.cfg.Threshold),
	}, nil
}

// topBy keeps the n highest-keyed centrality records. The input arrives
// sorted by account id, so the stable sort leaves ties in id order.
func topBy(records []domain.CentralityRecord, n int, key func(domain.CentralityRecord) float64) []domain.CentralityRecord {
	if n <= 0 {
		n = 10
	}
	sorted := append([]domain.CentralityRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]) > key(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
