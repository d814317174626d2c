package domain

import "time"

// Config holds the complete Talon configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Graph    GraphConfig    `json:"graph"`
	Analysis AnalysisConfig `json:"analysis"`
	Dataset  DatasetConfig  `json:"dataset"`
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`
	Ingest   IngestConfig   `json:"ingest"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// GraphConfig holds graph store settings.
type GraphConfig struct {
	// Backend is the store type: "memory" or "neo4j"
	Backend string `json:"backend"`

	// Neo4j settings
	Neo4jURI      string `json:"neo4jUri"`
	Neo4jUser     string `json:"neo4jUser"`
	Neo4jPassword string `json:"-"`
	Neo4jDatabase string `json:"neo4jDatabase"`

	// BatchSize bounds UNWIND upload batches to the external store.
	BatchSize int `json:"batchSize"`
}

// AnalysisConfig holds the tunable parameters of one analysis pass.
type AnalysisConfig struct {
	// Weights for the composite risk score. Must sum to 1.
	Weights RiskWeights `json:"weights"`

	// Threshold flags accounts whose score strictly exceeds it.
	Threshold float64 `json:"threshold"`

	// Seed fixes community detection tie-breaking for reproducible
	// partitions.
	Seed int64 `json:"seed"`

	// TopN caps ranked listings (centrality tables, pattern digests).
	TopN int `json:"topN"`

	// AlertRule is a CEL expression over the scored signals deciding
	// which accounts produce alert events. Variables: account_id,
	// risk_score, threshold, and the six normalized signals.
	AlertRule string `json:"alertRule"`

	// PageRank iteration parameters.
	PageRankDamping float64 `json:"pagerankDamping"`
	PageRankTol     float64 `json:"pagerankTol"`
	PageRankMaxIter int     `json:"pagerankMaxIter"`

	// Velocity burst detection over completed transfers.
	VelocityWindow    time.Duration `json:"velocityWindow"`
	VelocityMinCount  int           `json:"velocityMinCount"`
	VelocityMinAmount float64       `json:"velocityMinAmount"`
}

// DatasetConfig holds SQL staging settings for tabular input.
type DatasetConfig struct {
	// Driver is the SQL driver: "sqlite" or "postgres"
	Driver string `json:"driver"`

	// SQLite settings
	SQLitePath string `json:"sqlitePath"`

	// PostgreSQL settings
	PostgresHost     string `json:"postgresHost"`
	PostgresPort     int    `json:"postgresPort"`
	PostgresUser     string `json:"postgresUser"`
	PostgresPassword string `json:"-"`
	PostgresDB       string `json:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode"`
}

// IngestConfig holds Kafka ingestion settings.
type IngestConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	GroupID string   `json:"groupId"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// DefaultConfig returns a single-node configuration: in-memory graph,
// SQLite staging, local cache, channel bus, no Kafka ingestion.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Graph: GraphConfig{
			Backend:   "memory",
			BatchSize: 500,
		},
		Analysis: AnalysisConfig{
			Weights:           DefaultRiskWeights(),
			Threshold:         0.15,
			Seed:              42,
			TopN:              10,
			AlertRule:         "risk_score > threshold",
			PageRankDamping:   0.85,
			PageRankTol:       1e-6,
			PageRankMaxIter:   100,
			VelocityWindow:    24 * time.Hour,
			VelocityMinCount:  3,
			VelocityMinAmount: 3000,
		},
		Dataset: DatasetConfig{
			Driver:     "sqlite",
			SQLitePath: "./talon.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Ingest: IngestConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "talon",
		},
	}
}

// ClusterConfig returns a configuration for clustered deployments:
// Neo4j graph store, PostgreSQL staging, Redis cache, NATS bus, Kafka
// ingestion.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Graph = GraphConfig{
		Backend:       "neo4j",
		Neo4jURI:      "bolt://localhost:7687",
		Neo4jUser:     "neo4j",
		Neo4jDatabase: "neo4j",
		BatchSize:     500,
	}
	cfg.Dataset = DatasetConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresUser:    "talon",
		PostgresDB:      "talon",
		PostgresSSLMode: "disable",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Ingest = IngestConfig{
		Enabled: true,
		Brokers: []string{"localhost:9092"},
		GroupID: "talon-ingest",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
