// Dataset simulator for exercising Talon against known fraud patterns.
//
// Usage:
//   go run cmd/talon-datagen/main.go -out ./data
//   go run cmd/talon-datagen/main.go -sqlite ./talon.db
//   go run cmd/talon-datagen/main.go -kafka localhost:9092
//
// This tool:
//   1. Generates a synthetic P2P payment dataset with planted fraud rings
//   2. Writes it to CSV files, a SQL staging database, or the Kafka ingest topic
//   3. Prints the planted rings so analysis results can be checked against ground truth
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/talon/internal/dataset"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/ingest"
)

func main() {
	// Parse flags
	accounts := flag.Int("accounts", 200, "Number of accounts to generate")
	transfers := flag.Int("transfers", 1000, "Number of transfers to generate")
	fraudRate := flag.Float64("fraud-rate", 0.02, "Fraction of accounts labeled fraud (0.0-1.0)")
	rings := flag.Int("rings", 3, "Number of fraud rings to plant")
	seed := flag.Int64("seed", 42, "Random seed (same seed, same dataset)")
	outDir := flag.String("out", "", "Directory for the four CSV tables")
	sqlitePath := flag.String("sqlite", "", "SQLite file to write the staging tables to")
	kafka := flag.String("kafka", "", "Kafka brokers (comma-separated) to publish the dataset to")
	batchID := flag.String("batch", "", "Batch ID for Kafka publishing (default: random UUID)")
	showRings := flag.Bool("show-rings", false, "Print the members of each planted ring")
	flag.Parse()

	if *outDir == "" && *sqlitePath == "" && *kafka == "" {
		fmt.Println("Usage: talon-datagen [-out ./data] [-sqlite ./talon.db] [-kafka localhost:9092]")
		fmt.Println("\nAt least one output is required.")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *accounts < 0 || *transfers < 0 || *rings < 0 {
		fmt.Println("ERROR: -accounts, -transfers, and -rings must be non-negative")
		os.Exit(1)
	}
	if *fraudRate < 0 || *fraudRate > 1 {
		fmt.Println("ERROR: -fraud-rate must be between 0.0 and 1.0")
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            TALON DATAGEN - Synthetic Fraud Dataset            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nAccounts:    %d\n", *accounts)
	fmt.Printf("Transfers:   %d\n", *transfers)
	fmt.Printf("Fraud Rate:  %.2f\n", *fraudRate)
	fmt.Printf("Rings:       %d\n", *rings)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Generate
	start := time.Now()
	gen := dataset.Generate(dataset.GeneratorConfig{
		Accounts:  *accounts,
		Transfers: *transfers,
		FraudRate: *fraudRate,
		Rings:     *rings,
		Seed:      *seed,
	})
	ds := gen.Dataset

	fraudAccounts := 0
	for _, a := range ds.Accounts {
		if a.IsFraud {
			fraudAccounts++
		}
	}
	fraudTransfers := 0
	for _, t := range ds.Transfers {
		if t.IsFraud {
			fraudTransfers++
		}
	}

	fmt.Printf("✓ Generated in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  - Accounts:  %d (%d labeled fraud)\n", len(ds.Accounts), fraudAccounts)
	fmt.Printf("  - Devices:   %d\n", len(ds.Devices))
	fmt.Printf("  - Links:     %d\n", len(ds.Links))
	fmt.Printf("  - Transfers: %d (%d labeled fraud)\n", len(ds.Transfers), fraudTransfers)
	fmt.Printf("  - Rings:     %d planted\n", len(gen.Rings))

	if *showRings {
		fmt.Println("\nPlanted rings (ground truth):")
		for i, ring := range gen.Rings {
			fmt.Printf("  Ring %d (%d members): %s\n", i+1, len(ring), strings.Join(ring, ", "))
		}
	}

	ctx := context.Background()

	// Write CSV tables
	if *outDir != "" {
		if err := dataset.WriteCSVDir(*outDir, ds); err != nil {
			fmt.Printf("ERROR: Failed to write CSV tables: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n✓ CSV tables written to %s/\n", *outDir)
		fmt.Printf("  %s.csv, %s.csv, %s.csv, %s.csv\n",
			dataset.TableAccounts, dataset.TableDevices, dataset.TableLinks, dataset.TableTransfers)
	}

	// Write SQL staging tables
	if *sqlitePath != "" {
		store, err := dataset.OpenSQL(domain.DatasetConfig{Driver: "sqlite", SQLitePath: *sqlitePath})
		if err != nil {
			fmt.Printf("ERROR: Failed to open %s: %v\n", *sqlitePath, err)
			os.Exit(1)
		}
		if err := store.Replace(ctx, ds); err != nil {
			store.Close()
			fmt.Printf("ERROR: Failed to write staging tables: %v\n", err)
			os.Exit(1)
		}
		store.Close()
		fmt.Printf("\n✓ Staging tables written to %s\n", *sqlitePath)
		fmt.Printf("  Analyze it:  TALON_SQLITE_PATH=%s talon\n", *sqlitePath)
		fmt.Println("  then:        curl -X POST localhost:8080/analyze -d '{\"source\":\"sql\"}'")
	}

	// Publish to the ingest topic
	if *kafka != "" {
		id := *batchID
		if id == "" {
			id = uuid.NewString()
		}
		pub, err := ingest.NewPublisher(strings.Split(*kafka, ","))
		if err != nil {
			fmt.Printf("ERROR: Failed to connect to Kafka at %s: %v\n", *kafka, err)
			os.Exit(1)
		}
		if err := pub.PublishDataset(ds, id); err != nil {
			pub.Close()
			fmt.Printf("ERROR: Failed to publish dataset: %v\n", err)
			os.Exit(1)
		}
		pub.Close()
		fmt.Printf("\n✓ Dataset published to %s (batch %s)\n", ingest.Topic, id)
		fmt.Println("  The commit event triggers an analysis pass once the consumer catches up.")
	}

	fmt.Println()
}
