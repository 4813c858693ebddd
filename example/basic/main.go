package main

import (
	"context"
	"fmt"
	"log"

	graphrag "github.com/compumax/graphrag"
	"github.com/compumax/graphrag/helper"
	"github.com/compumax/graphrag/model"
)

var sampleChunks = map[string]string{
	"chunk-aspirin": `Aspirin is a common over the counter medication.
It is frequently used to treat migraines and other headaches.`,
	"chunk-migraine": `Migraines are a recurring type of headache.
Patients with chronic migraines often visit a clinic regularly.`,
	"chunk-visits": `Visit records track when a patient was seen at the clinic
and which conditions were discussed during the visit.`,
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
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

	// Local all-MiniLM-L6-v2 embedder and distilbert NER extractor,
	// downloaded on first use
	if err := g.UseDefaultEmbedder(); err != nil {
		log.Fatalf("Failed to set up embedder: %v", err)
	}
	if err := g.UseDefaultEntityExtractor(); err != nil {
		log.Fatalf("Failed to set up entity extractor: %v", err)
	}

	ctx := context.Background()

	// Ingest document chunks, each annotated with the graph entities it mentions
	fmt.Println("Ingesting chunks...")
	entities := map[string][]string{
		"chunk-aspirin":  {"aspirin", "migraine"},
		"chunk-migraine": {"migraine"},
		"chunk-visits":   {},
	}
	for id, text := range sampleChunks {
		err := g.IngestChunk(ctx, id, text, model.Metadata{"entities": entities[id]})
		if err != nil {
			log.Fatalf("Failed to ingest chunk %s: %v", id, err)
		}
	}

	// Build a small knowledge graph next to the chunks
	fmt.Println("Building graph...")
	nodes := []struct {
		label model.NodeLabel
		key   string
	}{
		{model.NodeLabelPatient, "alice"},
		{model.NodeLabelCondition, "migraine"},
		{model.NodeLabelMedication, "aspirin"},
	}
	for _, n := range nodes {
		if _, err := g.UpsertNode(n.label, n.key, nil); err != nil {
			log.Fatalf("Failed to upsert node %s: %v", n.key, err)
		}
	}

	edges := []struct {
		from     model.NodeRef
		to       model.NodeRef
		edgeType model.EdgeType
	}{
		{
			model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"},
			model.NodeRef{Label: model.NodeLabelCondition, Key: "migraine"},
			model.EdgeTypeHasCondition,
		},
		{
			model.NodeRef{Label: model.NodeLabelCondition, Key: "migraine"},
			model.NodeRef{Label: model.NodeLabelMedication, Key: "aspirin"},
			model.EdgeTypeTreatedBy,
		},
	}
	for _, e := range edges {
		if _, err := g.UpsertEdge(e.from, e.to, e.edgeType, nil); err != nil {
			log.Fatalf("Failed to upsert edge: %v", err)
		}
	}

	// Retrieve evidence for a question
	queryText := "Which medication treats migraines?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	result, err := g.Retrieve(ctx, queryText, model.ModeFreeText)
	if err != nil {
		log.Fatalf("Failed to retrieve: %v", err)
	}

	fmt.Printf("\nFound %d evidence units (graph context used: %v):\n",
		len(result.Evidence), result.Diagnostics.GraphContextUsed)
	for i, unit := range result.Evidence {
		fmt.Printf("\n--- Evidence %d ---\n", i+1)
		fmt.Printf("Origin: %s\n", unit.Origin)
		fmt.Printf("Score: %.4f\n", unit.Score)
		fmt.Printf("Text: %s\n", unit.Text)
		fmt.Printf("Citation: %s\n", result.Citations[i])
	}

	fmt.Println("\nBasic example completed successfully!")
}
