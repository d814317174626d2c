package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/opensource-finance/talon/internal/domain"
)

const neo4jTimeout = 10 * time.Second

var neo4jSchema = []string{
	`CREATE CONSTRAINT account_id IF NOT EXISTS FOR (a:Account) REQUIRE a.account_id IS UNIQUE`,
	`CREATE CONSTRAINT device_id IF NOT EXISTS FOR (d:Device) REQUIRE d.device_id IS UNIQUE`,
	`CREATE INDEX account_fraud IF NOT EXISTS FOR (a:Account) ON (a.is_fraud_label)`,
}

// Neo4jStore mirrors every build into Neo4j while answering reads from an
// embedded in-memory store. The remote copy exists for external tooling
// such as Bloom or ad-hoc Cypher; all analysis paths stay local so a slow
// or flaky server never blocks a query.
type Neo4jStore struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
	mirror    *MemoryStore
}

// NewNeo4jStore connects to the configured server and verifies
// connectivity before returning.
func NewNeo4jStore(cfg domain.GraphConfig) (*Neo4jStore, error) {
	if cfg.Neo4jURI == "" {
		return nil, fmt.Errorf("%w: neo4j uri is required", domain.ErrInvalidInput)
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), neo4jTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: verify neo4j connectivity: %v", domain.ErrBackendUnavailable, err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Neo4jStore{
		driver:    driver,
		database:  cfg.Neo4jDatabase,
		batchSize: batchSize,
		mirror:    NewMemoryStore(),
	}, nil
}

// Build validates and loads the dataset into the local mirror first, so a
// bad dataset never wipes the remote copy, then replaces the remote graph.
func (s *Neo4jStore) Build(ctx context.Context, ds *domain.Dataset) error {
	if err := s.mirror.Build(ctx, ds); err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	// Schema commands cannot share a transaction with data writes, so
	// they run in auto-commit mode.
	for _, stmt := range neo4jSchema {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("%w: apply schema: %v", domain.ErrBackendUnavailable, err)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: reset graph: %v", domain.ErrBackendUnavailable, err)
	}

	accountRows := make([]map[string]any, 0, len(ds.Accounts))
	for _, a := range ds.Accounts {
		accountRows = append(accountRows, map[string]any{
			"account_id":         a.ID,
			"is_fraud_label":     a.IsFraud,
			"account_age_days":   a.AgeDays,
			"verification_level": a.Verification,
		})
	}
	if err := s.runBatches(ctx, session, `
		UNWIND $rows AS row
		CREATE (:Account {
			account_id: row.account_id,
			is_fraud_label: row.is_fraud_label,
			account_age_days: row.account_age_days,
			verification_level: row.verification_level
		})`, accountRows); err != nil {
		return fmt.Errorf("%w: upload accounts: %v", domain.ErrBackendUnavailable, err)
	}

	deviceRows := make([]map[string]any, 0, len(ds.Devices))
	for _, d := range ds.Devices {
		deviceRows = append(deviceRows, map[string]any{
			"device_id":   d.ID,
			"device_type": d.Type,
		})
	}
	if err := s.runBatches(ctx, session, `
		UNWIND $rows AS row
		CREATE (:Device {device_id: row.device_id, device_type: row.device_type})`, deviceRows); err != nil {
		return fmt.Errorf("%w: upload devices: %v", domain.ErrBackendUnavailable, err)
	}

	linkRows := make([]map[string]any, 0, len(ds.Links))
	for _, l := range ds.Links {
		linkRows = append(linkRows, map[string]any{
			"account_id": l.AccountID,
			"device_id":  l.DeviceID,
		})
	}
	if err := s.runBatches(ctx, session, `
		UNWIND $rows AS row
		MATCH (a:Account {account_id: row.account_id})
		MATCH (d:Device {device_id: row.device_id})
		MERGE (a)-[:USES_DEVICE]->(d)`, linkRows); err != nil {
		return fmt.Errorf("%w: upload device links: %v", domain.ErrBackendUnavailable, err)
	}

	// Transfers upload in their aggregated form, one relationship per
	// sender and receiver pair, matching what the mirror serves.
	net := s.mirror.TransferNetwork()
	var transferRows []map[string]any
	for _, from := range net.Nodes {
		for to, st := range net.Out[from] {
			transferRows = append(transferRows, map[string]any{
				"sender_id":      from,
				"receiver_id":    to,
				"total_amount":   st.TotalAmount,
				"transfer_count": st.TransferCount,
			})
		}
	}
	if err := s.runBatches(ctx, session, `
		UNWIND $rows AS row
		MATCH (s:Account {account_id: row.sender_id})
		MATCH (r:Account {account_id: row.receiver_id})
		CREATE (s)-[:TRANSFERRED {
			total_amount: row.total_amount,
			transfer_count: row.transfer_count
		}]->(r)`, transferRows); err != nil {
		return fmt.Errorf("%w: upload transfers: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Neo4jStore) runBatches(ctx context.Context, session neo4j.SessionWithContext, cypher string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, cypher, map[string]any{"rows": batch})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4jStore) Neighborhood(accountID string, depth int) (*domain.Subgraph, error) {
	return s.mirror.Neighborhood(accountID, depth)
}

func (s *Neo4jStore) SharedDevices() []domain.SharedDeviceGroup {
	return s.mirror.SharedDevices()
}

func (s *Neo4jStore) TransferPaths(source, target string, maxHops int) [][]string {
	return s.mirror.TransferPaths(source, target, maxHops)
}

func (s *Neo4jStore) Statistics() domain.GraphStatistics {
	return s.mirror.Statistics()
}

func (s *Neo4jStore) Accounts() []domain.Account {
	return s.mirror.Accounts()
}

func (s *Neo4jStore) Account(id string) (domain.Account, bool) {
	return s.mirror.Account(id)
}

func (s *Neo4jStore) Device(id string) (domain.Device, bool) {
	return s.mirror.Device(id)
}

func (s *Neo4jStore) AccountDevices(id string) []string {
	return s.mirror.AccountDevices(id)
}

func (s *Neo4jStore) AccountProjection() map[string]map[string]float64 {
	return s.mirror.AccountProjection()
}

func (s *Neo4jStore) TransferNetwork() *domain.TransferNetworkView {
	return s.mirror.TransferNetwork()
}

func (s *Neo4jStore) BuildID() string {
	return s.mirror.BuildID()
}

// Ping verifies connectivity with the Neo4j server.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Close shuts down the driver connection pool.
func (s *Neo4jStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), neo4jTimeout)
	defer cancel()
	return s.driver.Close(ctx)
}
