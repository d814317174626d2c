package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/talon/internal/dataset"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/query"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service  *engine.Service
	store    domain.GraphStore
	loader   *dataset.SQLStore
	cache    domain.Cache
	bus      domain.EventBus
	gatherer prometheus.Gatherer
	version  string
}

// NewHandler creates a new API handler. loader may be nil when no
// dataset store is configured.
func NewHandler(service *engine.Service, store domain.GraphStore, loader *dataset.SQLStore, cache domain.Cache, bus domain.EventBus, gatherer prometheus.Gatherer, version string) *Handler {
	return &Handler{
		service:  service,
		store:    store,
		loader:   loader,
		cache:    cache,
		bus:      bus,
		gatherer: gatherer,
		version:  version,
	}
}

// AnalyzeRequest is the request body for POST /analyze. An inline
// dataset takes precedence; otherwise source names where the dataset
// comes from: "staged" (default) or "sql".
type AnalyzeRequest struct {
	Source  string          `json:"source,omitempty"`
	Dataset *domain.Dataset `json:"dataset,omitempty"`
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	ReportID    string `json:"report_id"`
	BuildID     string `json:"build_id"`
	Accounts    int    `json:"accounts"`
	HighRisk    int    `json:"high_risk"`
	Communities int    `json:"communities"`
	Metadata    struct {
		TraceID    string `json:"trace_id"`
		DurationMs int64  `json:"duration_ms"`
		TotalMs    int64  `json:"total_ms"`
		Version    string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /analyze requests: it runs one full analysis
// pass and returns a summary. The full report is served by GET /report.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req AnalyzeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	var rep *domain.Report
	var err error
	switch {
	case req.Dataset != nil:
		h.service.Stage(ctx, req.Dataset, "inline")
		rep, err = h.service.AnalyzeStaged(ctx)

	case req.Source == "" || req.Source == "staged":
		rep, err = h.service.AnalyzeStaged(ctx)

	case req.Source == "sql":
		if h.loader == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "dataset store not available",
			})
			return
		}
		var ds *domain.Dataset
		ds, err = h.loader.Load(ctx)
		if err != nil {
			slog.Error("failed to load dataset", "error", err)
			writeError(w, err)
			return
		}
		h.service.Stage(ctx, ds, "sql")
		rep, err = h.service.AnalyzeStaged(ctx)

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `source must be "staged" or "sql"`,
		})
		return
	}
	if err != nil {
		slog.Error("analysis pass failed", "error", err)
		writeError(w, err)
		return
	}

	resp := AnalyzeResponse{
		ReportID:    rep.ID,
		BuildID:     rep.BuildID,
		Accounts:    rep.Statistics.Accounts,
		HighRisk:    len(rep.HighRisk),
		Communities: len(rep.CommunityStats),
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.DurationMs = rep.DurationMs
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Report handles GET /report. Without an id parameter it returns the
// report of the last completed pass; with ?id= it serves the cached
// copy, including the "latest" alias.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		h.cachedReport(w, r, id)
		return
	}

	rep, err := h.service.Report()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// cachedReport serves a report straight from the cache; the cache holds
// the serialized form, so no decode round trip is needed.
func (h *Handler) cachedReport(w http.ResponseWriter, r *http.Request, id string) {
	data, err := h.cache.Get(r.Context(), "report:"+id)
	if err != nil {
		slog.Error("failed to read cached report", "id", id, "error", err)
		writeError(w, err)
		return
	}
	if data == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "report not found",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Query handles POST /query requests against the last completed pass.
// Unknown variants and unknown account ids come back as structured
// error records with status 200; only a missing pass is an HTTP error.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "type is required",
		})
		return
	}

	result, err := h.service.Query(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GenerateRequest is the request body for POST /dataset/generate.
// Absent fields keep the default generation parameters; persist also
// writes the dataset to the configured SQL store.
type GenerateRequest struct {
	dataset.GeneratorConfig
	Persist bool `json:"persist,omitempty"`
}

// Generate handles POST /dataset/generate: it builds a synthetic
// dataset, stages it for the next pass and optionally persists it.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := GenerateRequest{GeneratorConfig: dataset.DefaultGeneratorConfig()}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	if req.Accounts < 0 || req.Transfers < 0 || req.Rings < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "accounts, transfers, and rings must be non-negative",
		})
		return
	}
	if req.FraudRate < 0 || req.FraudRate > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "fraud_rate must be between 0 and 1",
		})
		return
	}
	if req.Persist && h.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "dataset store not available",
		})
		return
	}

	gen := dataset.Generate(req.GeneratorConfig)

	if req.Persist {
		if err := h.loader.Replace(ctx, gen.Dataset); err != nil {
			slog.Error("failed to persist generated dataset", "error", err)
			writeError(w, err)
			return
		}
	}

	h.service.Stage(ctx, gen.Dataset, "generated")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts":  len(gen.Dataset.Accounts),
		"devices":   len(gen.Dataset.Devices),
		"links":     len(gen.Dataset.Links),
		"transfers": len(gen.Dataset.Transfers),
		"rings":     gen.Rings,
		"seed":      req.Seed,
		"persisted": req.Persist,
		"message":   "Dataset staged. Call POST /analyze to run a pass.",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check graph store health
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check dataset store health
	if h.loader != nil {
		if err := h.loader.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check event bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Rule returns the active alert rule expression.
func (h *Handler) Rule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"rule": h.service.Rule(),
	})
}

// Metrics returns the Prometheus scrape handler.
func (h *Handler) Metrics() http.Handler {
	return promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain sentinel errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errStatus(err), map[string]string{"error": err.Error()})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoAnalysis):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrMissingColumn),
		errors.Is(err, domain.ErrUnknownReference):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
