//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Talon fraud-graph
// analytics engine.
//
// These tests drive the COMPLETE analysis pipeline over HTTP:
//
//	Dataset → Graph Build → Communities / Centrality / Devices / Velocity → Risk Fusion → Report
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. DATASET: Four tables describing a P2P payment network: accounts
//    (with ground-truth fraud labels), devices, account-device links,
//    and transfers between accounts.
//
// 2. ANALYSIS PASS: One batch run over a staged dataset. The engine
//    builds the graph, detects communities, computes centrality, finds
//    shared devices and velocity spikes, then fuses six normalized
//    signals into one risk score per account:
//
//	score = .05*pagerank + .05*betweenness + .35*device + .25*age + .20*amount + .10*volume
//
// 3. FLAG RULE: A CEL expression (default "risk_score > threshold")
//    deciding which accounts get flagged. Flagged accounts land in the
//    report's high_risk list and on the alert feed.
//
// 4. QUERY: Point lookups against the finished pass (profile,
//    connections, risk, shared_devices, transfer_path, community,
//    suspicious_patterns). Bad queries return a structured error field,
//    not an HTTP error.
//
// The tests need a running server with its default configuration:
//
//	go run cmd/talon/main.go
//
// Each test stages its own synthetic dataset via POST /dataset/generate,
// so no external data files are required. Generation parameters always
// set fraud_rate high enough that the requested rings actually fit
// (rings are drawn from labeled fraudsters, 3-7 members each).
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("TALON_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Talon's API contract)
// ============================================================================

// GenerateRequest is the payload for POST /dataset/generate
type GenerateRequest struct {
	Accounts  int     `json:"accounts"`
	Transfers int     `json:"transfers"`
	FraudRate float64 `json:"fraud_rate"`
	Rings     int     `json:"rings"`
	Seed      int64   `json:"seed"`
	Persist   bool    `json:"persist,omitempty"`
}

// GenerateResponse echoes the staged dataset's shape, including the
// planted rings as ground truth
type GenerateResponse struct {
	Accounts  int        `json:"accounts"`
	Devices   int        `json:"devices"`
	Links     int        `json:"links"`
	Transfers int        `json:"transfers"`
	Rings     [][]string `json:"rings"`
	Persisted bool       `json:"persisted"`
}

// AnalyzeRequest selects the dataset source for POST /analyze
type AnalyzeRequest struct {
	Source string `json:"source,omitempty"`
}

// AnalyzeResponse is the pass summary returned by POST /analyze
type AnalyzeResponse struct {
	ReportID    string           `json:"report_id"`
	BuildID     string           `json:"build_id"`
	Accounts    int              `json:"accounts"`
	HighRisk    int              `json:"high_risk"`
	Communities int              `json:"communities"`
	Metadata    ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TraceID    string `json:"trace_id"`
	DurationMs int64  `json:"duration_ms"`
	TotalMs    int64  `json:"total_ms"`
	Version    string `json:"version"`
}

// RiskRecord mirrors one scored account row in the report
type RiskRecord struct {
	AccountID string  `json:"account_id"`
	Score     float64 `json:"risk_score"`
	Flagged   bool    `json:"flagged"`
	IsFraud   bool    `json:"is_fraud_label"`
}

// Report mirrors the slice of GET /report these tests assert on
type Report struct {
	ID         string `json:"id"`
	BuildID    string `json:"build_id"`
	Statistics struct {
		Accounts int `json:"accounts"`
		Devices  int `json:"devices"`
		Nodes    int `json:"nodes"`
	} `json:"statistics"`
	Risk      []RiskRecord `json:"risk"`
	HighRisk  []RiskRecord `json:"high_risk"`
	Threshold float64      `json:"threshold"`
}

// QueryRequest is the payload for POST /query
type QueryRequest struct {
	Type      string  `json:"type"`
	AccountID string  `json:"account_id,omitempty"`
	Source    string  `json:"source,omitempty"`
	Target    string  `json:"target,omitempty"`
	Depth     int     `json:"depth,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// QueryResult mirrors the answer envelope of POST /query
type QueryResult struct {
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
	Profile *struct {
		AccountID    string `json:"account_id"`
		Verification string `json:"verification_level"`
	} `json:"profile,omitempty"`
	Risk *struct {
		Record    RiskRecord `json:"record"`
		RiskLevel string     `json:"risk_level"`
	} `json:"risk,omitempty"`
	SharedDevices *struct {
		Total   int `json:"total_shared_devices"`
		Devices []struct {
			DeviceID     string `json:"device_id"`
			AccountCount int    `json:"account_count"`
		} `json:"shared_devices"`
	} `json:"shared_devices,omitempty"`
	Community *struct {
		Membership *struct {
			AccountID string   `json:"account_id"`
			Size      int      `json:"community_size"`
			Members   []string `json:"members"`
		} `json:"membership,omitempty"`
		Overview *struct {
			TotalCommunities int `json:"total_communities"`
		} `json:"overview,omitempty"`
	} `json:"community,omitempty"`
	Patterns *struct {
		Threshold float64 `json:"threshold"`
		HighRisk  []struct {
			AccountID string  `json:"account_id"`
			RiskScore float64 `json:"risk_score"`
		} `json:"high_risk_accounts"`
	} `json:"suspicious_patterns,omitempty"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func postJSON(t *testing.T, config TestConfig, path string, payload, out any) int {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, config TestConfig, path string, out any) int {
	t.Helper()

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(config.BaseURL + path)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
	return resp.StatusCode
}

// runPass stages a synthetic dataset and runs one analysis pass over it.
func runPass(t *testing.T, config TestConfig, gen GenerateRequest) AnalyzeResponse {
	t.Helper()

	var genResp GenerateResponse
	if status := postJSON(t, config, "/dataset/generate", gen, &genResp); status != http.StatusOK {
		t.Fatalf("Generate failed with status %d", status)
	}
	if genResp.Accounts != gen.Accounts {
		t.Fatalf("Generated %d accounts, want %d", genResp.Accounts, gen.Accounts)
	}

	var result AnalyzeResponse
	if status := postJSON(t, config, "/analyze", AnalyzeRequest{Source: "staged"}, &result); status != http.StatusOK {
		t.Fatalf("Analyze failed with status %d", status)
	}
	return result
}

// ============================================================================
// SCENARIO 1: Full Analysis Pass over a Planted-Ring Dataset
// ============================================================================

func TestFullAnalysisPass(t *testing.T) {
	/*
	   SCENARIO: 120 accounts, 15% labeled fraud, 2 planted rings.
	   Ring members are young basic-verification accounts sharing mobile
	   devices and moving 100-5000 between each other.

	   EXPECTED BEHAVIOR:
	   - The pass covers every account (accounts == 120)
	   - Ring members score high on device, age, and amount signals,
	     so at least one account crosses the 0.15 flag threshold
	   - The ring structure produces at least one community
	   - The response carries report/build identity and trace metadata
	*/
	config := getTestConfig()

	var genResp GenerateResponse
	gen := GenerateRequest{Accounts: 120, Transfers: 600, FraudRate: 0.15, Rings: 2, Seed: 42}
	if status := postJSON(t, config, "/dataset/generate", gen, &genResp); status != http.StatusOK {
		t.Fatalf("Generate failed with status %d", status)
	}

	// 18 fraudsters fit 2 rings even at the maximum ring size of 7.
	if len(genResp.Rings) != 2 {
		t.Fatalf("Expected 2 planted rings, got %d", len(genResp.Rings))
	}
	for i, ring := range genResp.Rings {
		if len(ring) < 3 || len(ring) > 7 {
			t.Errorf("Ring %d has %d members, want 3-7", i, len(ring))
		}
	}

	var result AnalyzeResponse
	if status := postJSON(t, config, "/analyze", AnalyzeRequest{Source: "staged"}, &result); status != http.StatusOK {
		t.Fatalf("Analyze failed with status %d", status)
	}

	// ASSERTIONS
	if result.Accounts != 120 {
		t.Errorf("Expected 120 accounts analyzed, got %d", result.Accounts)
	}
	if result.ReportID == "" {
		t.Error("Expected a report_id")
	}
	if result.BuildID == "" {
		t.Error("Expected a build_id")
	}
	if result.HighRisk == 0 {
		t.Error("Expected ring members to be flagged, got 0 high-risk accounts")
	}
	if result.Communities == 0 {
		t.Error("Expected at least one community")
	}
	if result.Metadata.TraceID == "" {
		t.Error("Expected a trace_id in response metadata")
	}
	if result.Metadata.Version == "" {
		t.Error("Expected a version in response metadata")
	}

	t.Logf("✓ Pass complete: report=%s accounts=%d high_risk=%d communities=%d (%dms)",
		result.ReportID, result.Accounts, result.HighRisk, result.Communities, result.Metadata.DurationMs)
}

// ============================================================================
// SCENARIO 2: Report Retrieval and Caching
// ============================================================================

func TestReportRetrieval(t *testing.T) {
	/*
	   SCENARIO: Run a pass, then fetch the report three ways:
	   latest, by id (served from cache), and via the "latest" alias.

	   EXPECTED BEHAVIOR:
	   - GET /report returns the report of the pass just run
	   - Every account has a risk row; rows are sorted by score descending
	   - high_risk holds exactly the flagged rows, all above threshold
	   - GET /report?id=<id> and ?id=latest return the same report
	   - An unknown id is a 404
	*/
	config := getTestConfig()
	result := runPass(t, config, GenerateRequest{Accounts: 80, Transfers: 400, FraudRate: 0.15, Rings: 1, Seed: 7})

	var report Report
	if status := getJSON(t, config, "/report", &report); status != http.StatusOK {
		t.Fatalf("Report failed with status %d", status)
	}

	if report.ID != result.ReportID {
		t.Errorf("Report id %s does not match analyze response %s", report.ID, result.ReportID)
	}
	if report.Statistics.Accounts != 80 {
		t.Errorf("Expected 80 accounts in statistics, got %d", report.Statistics.Accounts)
	}
	if len(report.Risk) != 80 {
		t.Errorf("Expected a risk row per account, got %d", len(report.Risk))
	}
	for i := 1; i < len(report.Risk); i++ {
		if report.Risk[i].Score > report.Risk[i-1].Score {
			t.Errorf("Risk rows not sorted by score: row %d (%.4f) > row %d (%.4f)",
				i, report.Risk[i].Score, i-1, report.Risk[i-1].Score)
			break
		}
	}
	if len(report.HighRisk) != result.HighRisk {
		t.Errorf("high_risk length %d does not match analyze summary %d", len(report.HighRisk), result.HighRisk)
	}
	for _, rec := range report.HighRisk {
		if !rec.Flagged {
			t.Errorf("Account %s in high_risk but not flagged", rec.AccountID)
		}
		if rec.Score <= report.Threshold {
			t.Errorf("Account %s flagged at score %.4f, threshold %.4f", rec.AccountID, rec.Score, report.Threshold)
		}
	}

	var byID Report
	if status := getJSON(t, config, "/report?id="+report.ID, &byID); status != http.StatusOK {
		t.Fatalf("Report by id failed with status %d", status)
	}
	if byID.ID != report.ID {
		t.Errorf("Cached report id %s, want %s", byID.ID, report.ID)
	}

	var latest Report
	if status := getJSON(t, config, "/report?id=latest", &latest); status != http.StatusOK {
		t.Fatalf("Report latest alias failed with status %d", status)
	}
	if latest.ID != report.ID {
		t.Errorf("Latest alias returned %s, want %s", latest.ID, report.ID)
	}

	if status := getJSON(t, config, "/report?id=no-such-report", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown report id, got %d", status)
	}

	t.Logf("✓ Report %s: %d risk rows, %d high-risk, threshold %.2f",
		report.ID, len(report.Risk), len(report.HighRisk), report.Threshold)
}

// ============================================================================
// SCENARIO 3: Point Queries Against a Finished Pass
// ============================================================================

func TestPointQueries(t *testing.T) {
	/*
	   SCENARIO: Run a pass, pick the top-scored account, and interrogate
	   it through each query variant.

	   EXPECTED BEHAVIOR:
	   - profile/risk/community answer for the account
	   - The risk answer repeats the report's score exactly
	   - shared_devices sees the ring's shared mobile devices
	   - suspicious_patterns shortlists accounts above the probe threshold
	   - Unknown accounts and unknown variants come back as structured
	     errors with HTTP 200
	*/
	config := getTestConfig()
	runPass(t, config, GenerateRequest{Accounts: 80, Transfers: 400, FraudRate: 0.15, Rings: 1, Seed: 21})

	var report Report
	if status := getJSON(t, config, "/report", &report); status != http.StatusOK {
		t.Fatalf("Report failed with status %d", status)
	}
	if len(report.Risk) == 0 {
		t.Fatal("Report has no risk rows")
	}
	top := report.Risk[0]

	t.Run("Profile", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "profile", AccountID: top.AccountID}, &res); status != http.StatusOK {
			t.Fatalf("Query failed with status %d", status)
		}
		if res.Error != "" {
			t.Fatalf("Unexpected query error: %s", res.Error)
		}
		if res.Profile == nil || res.Profile.AccountID != top.AccountID {
			t.Errorf("Expected profile for %s, got %+v", top.AccountID, res.Profile)
		}
		if res.Profile != nil && res.Profile.Verification == "" {
			t.Error("Expected a verification level")
		}
	})

	t.Run("RiskMatchesReport", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "risk", AccountID: top.AccountID}, &res); status != http.StatusOK {
			t.Fatalf("Query failed with status %d", status)
		}
		if res.Error != "" || res.Risk == nil {
			t.Fatalf("Expected a risk answer, got error=%q", res.Error)
		}
		if math.Abs(res.Risk.Record.Score-top.Score) > 1e-9 {
			t.Errorf("Query score %.6f differs from report score %.6f", res.Risk.Record.Score, top.Score)
		}
		if res.Risk.RiskLevel == "" {
			t.Error("Expected a risk level")
		}
	})

	t.Run("SharedDevices", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "shared_devices"}, &res); status != http.StatusOK {
			t.Fatalf("Query failed with status %d", status)
		}
		if res.SharedDevices == nil || res.SharedDevices.Total == 0 {
			t.Fatal("Expected the planted ring's shared devices")
		}
		for _, d := range res.SharedDevices.Devices {
			if d.AccountCount < 2 {
				t.Errorf("Device %s shared by %d accounts, want >= 2", d.DeviceID, d.AccountCount)
			}
		}
	})

	t.Run("CommunityMembership", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "community", AccountID: top.AccountID}, &res); status != http.StatusOK {
			t.Fatalf("Query failed with status %d", status)
		}
		if res.Error != "" || res.Community == nil || res.Community.Membership == nil {
			t.Fatalf("Expected community membership, got error=%q", res.Error)
		}
		m := res.Community.Membership
		if m.Size < 1 {
			t.Errorf("Community size %d, want >= 1", m.Size)
		}
		found := false
		for _, id := range m.Members {
			if id == top.AccountID {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Account %s missing from its own community members", top.AccountID)
		}
	})

	t.Run("CommunityOverview", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "community"}, &res); status != http.StatusOK {
			t.Fatalf("Query failed with status %d", status)
		}
		if res.Community == nil || res.Community.Overview == nil {
			t.Fatal("Expected a community overview without an account scope")
		}
		if res.Community.Overview.TotalCommunities == 0 {
			t.Error("Expected at least one community")
		}
	})

	t.Run("SuspiciousPatterns", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "suspicious_patterns"}, &res); status != http.StatusOK {
			t.Fatalf("Query failed with status %d", status)
		}
		if res.Patterns == nil {
			t.Fatal("Expected a patterns answer")
		}
		for _, acc := range res.Patterns.HighRisk {
			if acc.RiskScore <= res.Patterns.Threshold {
				t.Errorf("Account %s shortlisted at %.4f, threshold %.4f",
					acc.AccountID, acc.RiskScore, res.Patterns.Threshold)
			}
		}
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "risk", AccountID: "ghost"}, &res); status != http.StatusOK {
			t.Fatalf("Expected 200 with a structured error, got %d", status)
		}
		if res.Error == "" {
			t.Error("Expected a structured error for an unknown account")
		}
	})

	t.Run("UnknownVariant", func(t *testing.T) {
		var res QueryResult
		if status := postJSON(t, config, "/query", QueryRequest{Type: "telepathy"}, &res); status != http.StatusOK {
			t.Fatalf("Expected 200 with a structured error, got %d", status)
		}
		if !strings.Contains(res.Error, "unknown query type") {
			t.Errorf("Expected an unknown-type error, got %q", res.Error)
		}
	})
}

// ============================================================================
// SCENARIO 4: Deterministic Scoring
// ============================================================================

func TestDeterministicScoring(t *testing.T) {
	/*
	   SCENARIO: Run two passes over byte-identical datasets (same
	   generation seed) and compare the scores of every account.

	   EXPECTED BEHAVIOR:
	   - Report and build ids differ (fresh pass, fresh build)
	   - Every account's risk score is identical across the two passes;
	     the whole pipeline is deterministic for a fixed input
	*/
	config := getTestConfig()
	gen := GenerateRequest{Accounts: 60, Transfers: 300, FraudRate: 0.15, Rings: 1, Seed: 99}

	first := runPass(t, config, gen)
	var firstReport Report
	if status := getJSON(t, config, "/report", &firstReport); status != http.StatusOK {
		t.Fatalf("First report failed with status %d", status)
	}

	second := runPass(t, config, gen)
	var secondReport Report
	if status := getJSON(t, config, "/report", &secondReport); status != http.StatusOK {
		t.Fatalf("Second report failed with status %d", status)
	}

	if first.ReportID == second.ReportID {
		t.Error("Expected distinct report ids per pass")
	}
	if first.BuildID == second.BuildID {
		t.Error("Expected distinct build ids per pass")
	}

	scores := make(map[string]float64, len(firstReport.Risk))
	for _, rec := range firstReport.Risk {
		scores[rec.AccountID] = rec.Score
	}
	if len(secondReport.Risk) != len(firstReport.Risk) {
		t.Fatalf("Risk row count changed between passes: %d vs %d", len(firstReport.Risk), len(secondReport.Risk))
	}
	for _, rec := range secondReport.Risk {
		want, ok := scores[rec.AccountID]
		if !ok {
			t.Errorf("Account %s appeared only in the second pass", rec.AccountID)
			continue
		}
		if math.Abs(rec.Score-want) > 1e-12 {
			t.Errorf("Account %s scored %.9f then %.9f", rec.AccountID, want, rec.Score)
		}
	}

	t.Logf("✓ %d accounts scored identically across two passes", len(firstReport.Risk))
}

// ============================================================================
// SCENARIO 5: SQL Staging Round Trip
// ============================================================================

func TestSQLRoundTrip(t *testing.T) {
	/*
	   SCENARIO: Persist a generated dataset into the server's staging
	   tables, then analyze with source=sql so the server loads it back
	   from the database.

	   EXPECTED BEHAVIOR:
	   - persist=true writes the four staging tables
	   - POST /analyze {"source":"sql"} reloads and analyzes the same
	     dataset
	*/
	config := getTestConfig()

	var genResp GenerateResponse
	gen := GenerateRequest{Accounts: 50, Transfers: 250, FraudRate: 0.15, Rings: 1, Seed: 5, Persist: true}
	if status := postJSON(t, config, "/dataset/generate", gen, &genResp); status != http.StatusOK {
		t.Fatalf("Generate failed with status %d", status)
	}
	if !genResp.Persisted {
		t.Fatal("Expected the dataset to be persisted")
	}

	var result AnalyzeResponse
	if status := postJSON(t, config, "/analyze", AnalyzeRequest{Source: "sql"}, &result); status != http.StatusOK {
		t.Fatalf("Analyze from sql failed with status %d", status)
	}
	if result.Accounts != 50 {
		t.Errorf("Expected 50 accounts loaded from sql, got %d", result.Accounts)
	}

	t.Logf("✓ SQL round trip: %d accounts staged, loaded, and analyzed", result.Accounts)
}

// ============================================================================
// SCENARIO 6: Operational Endpoints
// ============================================================================

func TestOperationalEndpoints(t *testing.T) {
	config := getTestConfig()

	t.Run("Health", func(t *testing.T) {
		var health struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		}
		if status := getJSON(t, config, "/health", &health); status != http.StatusOK {
			t.Fatalf("Health failed with status %d", status)
		}
		if health.Status != "healthy" && health.Status != "degraded" {
			t.Errorf("Unexpected health status %q", health.Status)
		}
		if health.Version == "" {
			t.Error("Expected a version")
		}
	})

	t.Run("Ready", func(t *testing.T) {
		if status := getJSON(t, config, "/ready", nil); status != http.StatusOK {
			t.Errorf("Ready failed with status %d", status)
		}
	})

	t.Run("Rule", func(t *testing.T) {
		var rule struct {
			Rule string `json:"rule"`
		}
		if status := getJSON(t, config, "/rule", &rule); status != http.StatusOK {
			t.Fatalf("Rule failed with status %d", status)
		}
		if rule.Rule == "" {
			t.Error("Expected a flag rule expression")
		}
		t.Logf("Active flag rule: %s", rule.Rule)
	})

	t.Run("Metrics", func(t *testing.T) {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(config.BaseURL + "/metrics")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("Failed to read response: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Metrics failed with status %d", resp.StatusCode)
		}
		text := string(body)
		for _, metric := range []string{"talon_http_requests_total", "talon_analysis_passes_total", "talon_graph_nodes"} {
			if !strings.Contains(text, metric) {
				t.Errorf("Metrics output missing %s", metric)
			}
		}
	})
}
