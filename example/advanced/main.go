package main

import (
	"context"
	"fmt"
	"log"
	"os"

	graphrag "github.com/compumax/graphrag"
	"github.com/compumax/graphrag/helper"
	"github.com/compumax/graphrag/model"
	"github.com/google/uuid"
)

// Historical queries over a small sales schema. Each record is embedded
// into the query history collection and mirrored into the graph as a
// Query node with ACCESSES edges onto its tables.
var queryHistory = []struct {
	text   string
	tables []string
}{
	{
		text:   "SELECT c.name, sum(s.amount) FROM customers c JOIN sales s USING (customer_id) GROUP BY c.name ORDER BY 2 DESC LIMIT 5",
		tables: []string{"customers", "sales"},
	},
	{
		text:   "SELECT region, sum(amount) FROM sales GROUP BY region",
		tables: []string{"sales"},
	},
	{
		text:   "SELECT p.name, count(*) FROM products p JOIN sales s USING (product_id) GROUP BY p.name",
		tables: []string{"products", "sales"},
	},
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	g, err := graphrag.NewGraphRAG(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create graphrag: %v", err)
	}
	defer g.Close()

	if err := g.UseDefaultEmbedder(); err != nil {
		log.Fatalf("Failed to set up embedder: %v", err)
	}

	ctx := context.Background()

	// Ingest the query history
	fmt.Println("Ingesting query history...")
	for _, record := range queryHistory {
		id := uuid.New().String()
		err := g.IngestQueryRecord(ctx, id, record.text, record.tables, nil)
		if err != nil {
			log.Fatalf("Failed to ingest query record: %v", err)
		}
		fmt.Printf("Ingested %s (tables: %v)\n", id, record.tables)
	}

	// Switch the query history collection to an HNSW index
	err = g.Vectors.ChangeIndexType(ctx, "queries", "hnsw", map[string]interface{}{
		"m":               16,
		"ef_construction": 64,
	})
	if err != nil {
		log.Fatalf("Failed to change index type: %v", err)
	}
	fmt.Println("Switched query history collection to HNSW index")

	// Retrieve context for a new request. Related queries reachable only
	// through shared tables surface via graph expansion.
	request := "show me the customers with the highest total sales"
	fmt.Printf("\nRequest: %s\n", request)

	result, err := g.Retrieve(ctx, request, model.ModeStructuredQuery)
	if err != nil {
		log.Fatalf("Failed to retrieve: %v", err)
	}

	fmt.Printf("\nFound %d evidence units (graph context used: %v, queries used: %d):\n",
		len(result.Evidence),
		result.Diagnostics.GraphContextUsed,
		result.Diagnostics.ContextQueriesUsed)
	for i, unit := range result.Evidence {
		fmt.Printf("\n--- Evidence %d ---\n", i+1)
		fmt.Printf("Origin: %s\n", unit.Origin)
		fmt.Printf("Score: %.4f\n", unit.Score)
		fmt.Printf("Text: %s\n", unit.Text)
		fmt.Printf("Citation: %s\n", result.Citations[i])
	}

	// With a generation endpoint configured, synthesize the query itself
	if os.Getenv("GENERATION_BASE_URL") != "" {
		if err := g.UseDefaultGenerator(); err != nil {
			log.Fatalf("Failed to set up generator: %v", err)
		}

		answer, _, err := g.SynthesizeQuery(ctx, request)
		if err != nil {
			log.Fatalf("Failed to synthesize query: %v", err)
		}
		fmt.Printf("\nSynthesized query:\n%s\n", answer)
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
