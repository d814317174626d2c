// Package graphstore builds and owns the two graph views of a dataset:
// the undirected relational graph and the directed aggregated transfer
// network. Provides an in-memory backend and a Neo4j backend that keeps
// a local mirror for traversal-heavy algorithms.
package graphstore

import (
	"fmt"

	"github.com/opensource-finance/talon/internal/domain"
)

// New creates a graph store based on configuration.
func New(cfg domain.GraphConfig) (domain.GraphStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "neo4j":
		return NewNeo4jStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported graph backend: %s", cfg.Backend)
	}
}
