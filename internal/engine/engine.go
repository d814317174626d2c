// Package engine coordinates analysis passes and owns their results.
// A pass rebuilds the graph store from a dataset, runs the detector
// stack, swaps in a fresh query snapshot, caches the report and
// publishes events. Passes are serialized; reads always see the last
// completed pass.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/metrics"
	"github.com/opensource-finance/talon/internal/query"
	"github.com/opensource-finance/talon/internal/report"
	"github.com/opensource-finance/talon/internal/risk"
)

var tracer = otel.Tracer("talon-engine")

// reportTTL bounds how long cached reports live. Cluster nodes sharing
// a Redis cache can serve a report this long without rerunning a pass.
const reportTTL = 24 * time.Hour

// DatasetLoadedEvent announces a staged dataset on the event bus.
type DatasetLoadedEvent struct {
	Source    string `json:"source"`
	Accounts  int    `json:"accounts"`
	Devices   int    `json:"devices"`
	Links     int    `json:"links"`
	Transfers int    `json:"transfers"`
}

// ReportCompletedEvent announces a finished analysis pass.
type ReportCompletedEvent struct {
	ReportID    string `json:"report_id"`
	BuildID     string `json:"build_id"`
	Accounts    int    `json:"accounts"`
	HighRisk    int    `json:"high_risk"`
	Communities int    `json:"communities"`
	DurationMs  int64  `json:"duration_ms"`
}

// AlertEvent is one account matched by the alert rule.
type AlertEvent struct {
	ReportID  string  `json:"report_id"`
	AccountID string  `json:"account_id"`
	RiskScore float64 `json:"risk_score"`
	Threshold float64 `json:"threshold"`
	Rule      string  `json:"rule"`
}

// snapshot bundles everything a completed pass produced.
type snapshot struct {
	dataset *domain.Dataset
	report  *domain.Report
	queries *query.Engine
}

// Service runs passes against one graph store. The store is rebuilt in
// place per pass; the passMu mutex keeps passes from overlapping.
type Service struct {
	cfg       domain.AnalysisConfig
	store     domain.GraphStore
	bus       domain.EventBus
	cache     domain.Cache
	collector *metrics.Collector

	gen  *report.Generator
	rule *risk.Rule

	passMu sync.Mutex

	mu     sync.RWMutex
	staged *domain.Dataset
	snap   *snapshot
}

// New validates the analysis parameters, compiles the alert rule and
// wires the service together.
func New(cfg domain.AnalysisConfig, store domain.GraphStore, bus domain.EventBus, cache domain.Cache, collector *metrics.Collector) (*Service, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("risk weights: %w", err)
	}
	rule, err := risk.NewRule(cfg.AlertRule)
	if err != nil {
		return nil, fmt.Errorf("alert rule: %w", err)
	}

	return &Service{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		cache:     cache,
		collector: collector,
		gen:       report.NewGenerator(cfg),
		rule:      rule,
	}, nil
}

// Stage records a dataset for the next pass and announces it on the
// bus. Staging replaces any previously staged dataset.
func (s *Service) Stage(ctx context.Context, ds *domain.Dataset, source string) {
	s.mu.Lock()
	s.staged = ds
	s.mu.Unlock()

	payload, _ := json.Marshal(DatasetLoadedEvent{
		Source:    source,
		Accounts:  len(ds.Accounts),
		Devices:   len(ds.Devices),
		Links:     len(ds.Links),
		Transfers: len(ds.Transfers),
	})
	if err := s.bus.Publish(ctx, domain.TopicDatasetLoaded, payload); err != nil {
		slog.Warn("publish dataset loaded event failed", "error", err)
	}

	slog.Info("dataset staged",
		"source", source,
		"accounts", len(ds.Accounts),
		"devices", len(ds.Devices),
		"links", len(ds.Links),
		"transfers", len(ds.Transfers),
	)
}

// Staged returns the dataset waiting for the next pass, or nil.
func (s *Service) Staged() *domain.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staged
}

// AnalyzeStaged runs a pass over the currently staged dataset.
func (s *Service) AnalyzeStaged(ctx context.Context) (*domain.Report, error) {
	s.mu.RLock()
	ds := s.staged
	s.mu.RUnlock()

	if ds == nil {
		return nil, fmt.Errorf("%w: no dataset staged", domain.ErrInvalidInput)
	}
	return s.Analyze(ctx, ds)
}

// Analyze runs one full pass: rebuild the graph store, generate the
// report, swap the query snapshot, cache the report and publish events.
// Passes are serialized; a failed pass leaves the previous snapshot in
// place.
func (s *Service) Analyze(ctx context.Context, ds *domain.Dataset) (*domain.Report, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	ctx, span := tracer.Start(ctx, "analysis.pass",
		trace.WithAttributes(
			attribute.Int("dataset.accounts", len(ds.Accounts)),
			attribute.Int("dataset.transfers", len(ds.Transfers)),
		),
	)
	defer span.End()

	start := time.Now()

	if err := s.store.Build(ctx, ds); err != nil {
		s.collector.ObservePass("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("build graph: %w", err)
	}

	rep, err := s.gen.Generate(s.store, ds)
	if err != nil {
		s.collector.ObservePass("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("generate report: %w", err)
	}

	s.mu.Lock()
	s.snap = &snapshot{
		dataset: ds,
		report:  rep,
		queries: query.NewEngine(s.store, ds, rep),
	}
	s.mu.Unlock()

	s.cacheReport(ctx, rep)
	alerts := s.publishEvents(ctx, rep)

	elapsed := time.Since(start)
	s.collector.ObservePass("success", elapsed.Seconds())
	s.collector.SetGraphSize(rep.Statistics.Nodes, rep.Statistics.RelationalEdges)
	s.collector.SetReportSummary(len(rep.HighRisk), len(rep.CommunityStats), len(rep.SharedDevices))
	s.collector.AddAlerts(alerts)

	slog.Info("analysis pass completed",
		"report_id", rep.ID,
		"build_id", rep.BuildID,
		"accounts", rep.Statistics.Accounts,
		"high_risk", len(rep.HighRisk),
		"alerts", alerts,
		"duration", elapsed,
	)
	return rep, nil
}

// Report returns the report of the last completed pass.
func (s *Service) Report() (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, domain.ErrNoAnalysis
	}
	return s.snap.report, nil
}

// Query answers one point query against the last completed pass.
func (s *Service) Query(req query.Request) (query.Result, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap == nil {
		return query.Result{}, domain.ErrNoAnalysis
	}
	s.collector.IncrementQueries(string(req.Type))
	return snap.queries.Query(req), nil
}

// Rule returns the source expression of the compiled alert rule.
func (s *Service) Rule() string {
	return s.rule.Expression()
}

// cacheReport stores the serialized report under its id and as the
// latest. Cache failures never fail the pass.
func (s *Service) cacheReport(ctx context.Context, rep *domain.Report) {
	data, err := json.Marshal(rep)
	if err != nil {
		slog.Warn("marshal report for cache failed", "report_id", rep.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, "report:"+rep.ID, data, reportTTL); err != nil {
		slog.Warn("cache report failed", "report_id", rep.ID, "error", err)
	}
	if err := s.cache.Set(ctx, "report:latest", data, reportTTL); err != nil {
		slog.Warn("cache latest report failed", "report_id", rep.ID, "error", err)
	}
}

// publishEvents emits the completion event plus one alert per account
// matched by the alert rule. Returns the number of alerts published.
func (s *Service) publishEvents(ctx context.Context, rep *domain.Report) int {
	completed, _ := json.Marshal(ReportCompletedEvent{
		ReportID:    rep.ID,
		BuildID:     rep.BuildID,
		Accounts:    rep.Statistics.Accounts,
		HighRisk:    len(rep.HighRisk),
		Communities: len(rep.CommunityStats),
		DurationMs:  rep.DurationMs,
	})
	if err := s.bus.Publish(ctx, domain.TopicReportCompleted, completed); err != nil {
		slog.Warn("publish report completed event failed", "report_id", rep.ID, "error", err)
	}

	alerts := 0
	for _, rec := range rep.Risk {
		matched, err := s.rule.Match(rec, rep.Threshold)
		if err != nil {
			slog.Warn("alert rule evaluation failed", "account_id", rec.AccountID, "error", err)
			continue
		}
		if !matched {
			continue
		}

		payload, _ := json.Marshal(AlertEvent{
			ReportID:  rep.ID,
			AccountID: rec.AccountID,
			RiskScore: rec.Score,
			Threshold: rep.Threshold,
			Rule:      s.rule.Expression(),
		})
		if err := s.bus.Publish(ctx, domain.TopicAlertFlagged, payload); err != nil {
			slog.Warn("publish alert event failed", "account_id", rec.AccountID, "error", err)
			continue
		}
		alerts++
	}
	return alerts
}
