package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/compumax/graphrag/core/assembler"
	"github.com/compumax/graphrag/core/generation"
	"github.com/compumax/graphrag/core/graph"
	"github.com/compumax/graphrag/core/pipeline"
	"github.com/compumax/graphrag/core/planner"
	"github.com/compumax/graphrag/core/retrieval"
	"github.com/compumax/graphrag/database"
	"github.com/compumax/graphrag/helper"
	"github.com/compumax/graphrag/model"
	loadSql "github.com/compumax/graphrag/sql"
)

// DefaultContextBudgetChars bounds the assembled generation context
const DefaultContextBudgetChars = 4000

// GraphRAG provides a unified interface to hybrid retrieval over a local
// corpus: vector collections and a knowledge graph in one PostgreSQL
// database, a query planner, the retrieval engine and the generation
// boundary.
type GraphRAG struct {
	DB      *helper.Database
	Vectors *database.VectorsDBHandler
	Nodes   *database.NodesDBHandler
	Edges   *database.EdgesDBHandler
	Planner *planner.Planner
	Engine  *retrieval.Engine

	store     *graph.Store
	embedder  retrieval.Embedder
	extractor retrieval.EntityExtractor
	generator generation.Generator

	embeddingDim int
	budgetChars  int

	// Logging
	log *slog.Logger
}

// NewGraphRAG creates a new GraphRAG instance with all handlers initialized
// and the vector collections of the built-in modes registered.
func NewGraphRAG(config *helper.DatabaseConfiguration, embeddingDim int) (*GraphRAG, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("graphrag", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	vectors, err := database.NewVectorsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create vectors handler", err)
	}

	nodes, err := database.NewNodesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create nodes handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	g := &GraphRAG{
		DB:           db,
		Vectors:      vectors,
		Nodes:        nodes,
		Edges:        edges,
		Planner:      planner.NewPlanner(),
		store:        graph.NewStore(nodes, edges),
		embeddingDim: embeddingDim,
		budgetChars:  DefaultContextBudgetChars,
		log:          logger,
	}

	// Collections of the built-in modes
	for _, mode := range []model.QueryMode{model.ModeFreeText, model.ModeStructuredQuery} {
		request, err := g.Planner.Plan("", mode)
		if err != nil {
			return nil, err
		}
		if err := vectors.CreateCollection(request.Collection, embeddingDim); err != nil {
			return nil, helper.NewError("create collection", err)
		}
	}

	return g, nil
}

// Close closes the database connection
func (g *GraphRAG) Close() error {
	if g.DB != nil && g.DB.Instance != nil {
		return g.DB.Instance.Close()
	}
	return nil
}

// SetEmbedder sets the query and ingestion embedder.
// The retrieval engine is (re)built around it.
func (g *GraphRAG) SetEmbedder(embedder retrieval.Embedder) {
	g.embedder = embedder
	g.rebuildEngine()
}

// SetEntityExtractor sets the optional entity extractor used as an extra
// seed source in free text mode.
func (g *GraphRAG) SetEntityExtractor(extractor retrieval.EntityExtractor) {
	g.extractor = extractor
	g.rebuildEngine()
}

// SetGenerator sets the downstream completion boundary
func (g *GraphRAG) SetGenerator(generator generation.Generator) {
	g.generator = generator
}

// SetContextBudgetChars overrides the assembled context budget
func (g *GraphRAG) SetContextBudgetChars(budgetChars int) {
	g.budgetChars = budgetChars
}

// UseDefaultEmbedder sets up the local all-MiniLM-L6-v2 embedder (384
// dimensions), downloading the model if needed.
func (g *GraphRAG) UseDefaultEmbedder() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	g.SetEmbedder(embedder)
	return nil
}

// UseDefaultEntityExtractor sets up the local distilbert-NER extractor,
// downloading the model if needed.
func (g *GraphRAG) UseDefaultEntityExtractor() error {
	extractor, err := pipeline.DefaultEntityExtractor()
	if err != nil {
		return helper.NewError("create default entity extractor", err)
	}

	g.SetEntityExtractor(extractor)
	return nil
}

// UseDefaultGenerator sets up the generation boundary from the environment
// (GENERATION_BASE_URL, GENERATION_MODEL, GENERATION_TOKEN).
func (g *GraphRAG) UseDefaultGenerator() error {
	config, err := generation.NewConfig()
	if err != nil {
		return err
	}

	generator, err := generation.NewLLMGenerator(config, g.log)
	if err != nil {
		return err
	}

	g.SetGenerator(generator)
	return nil
}

func (g *GraphRAG) rebuildEngine() {
	if g.embedder == nil {
		g.Engine = nil
		return
	}
	g.Engine = retrieval.NewEngine(g.embedder, g.Vectors, g.store, g.extractor, g.log)
}

// RegisterMode registers the retrieval targets of a custom query mode and
// creates its vector collection.
func (g *GraphRAG) RegisterMode(mode model.QueryMode, targets planner.ModeTargets) error {
	err := g.Planner.RegisterMode(mode, targets)
	if err != nil {
		return err
	}

	if err := g.Vectors.CreateCollection(targets.Collection, g.embeddingDim); err != nil {
		return helper.NewError("create collection", err)
	}

	return nil
}

// IngestChunk embeds a document chunk and writes it into the free text
// collection. Metadata may carry graph references ("entities", "node_refs")
// linking the chunk to nodes for graph expansion.
func (g *GraphRAG) IngestChunk(ctx context.Context, id string, text string, metadata model.Metadata) error {
	return g.ingestRecord(ctx, model.ModeFreeText, id, text, metadata)
}

// IngestQueryRecord embeds a historical query and writes it into the query
// history collection, mirroring it into the graph: a Query node carrying
// the query text, connected by ACCESSES edges to the named tables (table
// nodes are created as needed).
func (g *GraphRAG) IngestQueryRecord(ctx context.Context, id string, queryText string, tables []string, metadata model.Metadata) error {
	if metadata == nil {
		metadata = model.Metadata{}
	}
	metadata["tables"] = tables

	err := g.ingestRecord(ctx, model.ModeStructuredQuery, id, queryText, metadata)
	if err != nil {
		return err
	}

	_, err = g.Nodes.UpsertNode(model.NodeLabelQuery, id, model.Metadata{"text": queryText})
	if err != nil {
		return helper.NewError("upsert query node", err)
	}

	for _, table := range tables {
		_, err = g.Nodes.UpsertNode(model.NodeLabelTable, table, nil)
		if err != nil {
			return helper.NewError("upsert table node", err)
		}

		_, err = g.Edges.UpsertEdge(
			model.NodeRef{Label: model.NodeLabelQuery, Key: id},
			model.NodeRef{Label: model.NodeLabelTable, Key: table},
			model.EdgeTypeAccesses,
			nil,
		)
		if err != nil {
			return helper.NewError("upsert access edge", err)
		}
	}

	return nil
}

func (g *GraphRAG) ingestRecord(ctx context.Context, mode model.QueryMode, id string, text string, metadata model.Metadata) error {
	if g.embedder == nil {
		return helper.NewError("ingest record", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}

	request, err := g.Planner.Plan("", mode)
	if err != nil {
		return err
	}

	embedding, err := g.embedder.EmbedText(ctx, text)
	if err != nil {
		return helper.NewError("generate embedding", err)
	}

	err = g.Vectors.UpsertVector(request.Collection, &model.VectorRecord{
		ID:         id,
		Embedding:  embedding,
		SourceText: text,
		Metadata:   metadata,
	})
	if err != nil {
		return err
	}

	g.log.Info("Ingested record",
		slog.String("collection", request.Collection),
		slog.String("id", id))

	return nil
}

// UpsertNode writes a graph node, merging properties into an existing one
func (g *GraphRAG) UpsertNode(label model.NodeLabel, key string, properties model.Metadata) (*model.Node, error) {
	return g.Nodes.UpsertNode(label, key, properties)
}

// UpsertEdge writes a directed, typed edge between two existing nodes
func (g *GraphRAG) UpsertEdge(from model.NodeRef, to model.NodeRef, edgeType model.EdgeType, properties model.Metadata) (*model.Edge, error) {
	return g.Edges.UpsertEdge(from, to, edgeType, properties)
}

// Retrieve plans and runs one retrieval pass for a question
func (g *GraphRAG) Retrieve(ctx context.Context, queryText string, mode model.QueryMode) (*model.RetrievalResult, error) {
	if g.Engine == nil {
		return nil, helper.NewError("retrieve", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}

	request, err := g.Planner.Plan(queryText, mode)
	if err != nil {
		return nil, err
	}

	return g.Engine.Retrieve(ctx, request)
}

// Ask answers a free text question over the ingested corpus.
// Returns the generated answer alongside the retrieval result carrying
// evidence, citations and diagnostics. An empty evidence set yields an
// empty answer without calling the generation service; that is not an
// error, the caller distinguishes it from dependency failures by the
// returned error being nil.
func (g *GraphRAG) Ask(ctx context.Context, question string) (string, *model.RetrievalResult, error) {
	return g.answer(ctx, question, model.ModeFreeText, generation.SystemPromptAnswer)
}

// SynthesizeQuery writes a SQL query for a natural language request, using
// historical queries and schema relationships as context.
func (g *GraphRAG) SynthesizeQuery(ctx context.Context, request string) (string, *model.RetrievalResult, error) {
	return g.answer(ctx, request, model.ModeStructuredQuery, generation.SystemPromptSQL)
}

func (g *GraphRAG) answer(ctx context.Context, queryText string, mode model.QueryMode, systemPrompt string) (string, *model.RetrievalResult, error) {
	if g.generator == nil {
		return "", nil, helper.NewError("generate answer", fmt.Errorf("generator not set, use SetGenerator() first"))
	}

	result, err := g.Retrieve(ctx, queryText, mode)
	if err != nil {
		return "", nil, err
	}

	contextText, _ := assembler.Assemble(result, g.budgetChars)
	if contextText == "" {
		return "", result, nil
	}

	answer, err := g.generator.Complete(ctx, systemPrompt, contextText, queryText)
	if err != nil {
		return "", result, err
	}

	return answer, result, nil
}

// Reset deletes all ingested records and the whole graph
func (g *GraphRAG) Reset() error {
	for _, mode := range []model.QueryMode{model.ModeFreeText, model.ModeStructuredQuery} {
		request, err := g.Planner.Plan("", mode)
		if err != nil {
			return err
		}
		if err := g.Vectors.ResetCollection(request.Collection); err != nil {
			return err
		}
	}

	return g.Nodes.ResetGraph()
}
