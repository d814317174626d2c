package graphstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestNewNeo4jStoreRequiresURI(t *testing.T) {
	_, err := NewNeo4jStore(domain.GraphConfig{Backend: "neo4j"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

// TestNeo4jStoreRoundTrip needs a running server; set TALON_NEO4J_URI
// (and optionally TALON_NEO4J_USER / TALON_NEO4J_PASSWORD) to enable it.
func TestNeo4jStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("TALON_NEO4J_URI")
	if uri == "" {
		t.Skip("TALON_NEO4J_URI not set")
	}

	store, err := NewNeo4jStore(domain.GraphConfig{
		Backend:       "neo4j",
		Neo4jURI:      uri,
		Neo4jUser:     os.Getenv("TALON_NEO4J_USER"),
		Neo4jPassword: os.Getenv("TALON_NEO4J_PASSWORD"),
		BatchSize:     2,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Build(ctx, testDataset()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}

	stats := store.Statistics()
	if stats.Accounts != 6 || stats.TransferEdges != 4 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
	paths := store.TransferPaths("U0001", "U0003", 3)
	if len(paths) != 1 {
		t.Errorf("paths = %v", paths)
	}
}
