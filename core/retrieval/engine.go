package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/compumax/graphrag/model"
)

const (
	// retryBackoff is the pause before the single retry of a failed store call.
	retryBackoff = 250 * time.Millisecond
	// entityCacheTTL bounds how long recognized entities of a hit text are reused.
	entityCacheTTL = 10 * time.Minute
)

// Engine runs one hybrid retrieval pass: vector search, seed extraction,
// graph expansion, deduplication, fusion ranking and budget enforcement.
// It holds no mutable state between requests beyond the injected store
// handles and the entity recognition cache, so concurrent requests may
// share one engine.
type Engine struct {
	embedder    Embedder
	vectors     VectorStore
	graph       GraphStore
	extractor   EntityExtractor
	entityCache *cache.Cache
	logger      *slog.Logger
	backoff     time.Duration
}

// NewEngine creates a new retrieval engine. The extractor may be nil, in
// which case seeds come from hit metadata only.
func NewEngine(embedder Embedder, vectors VectorStore, graph GraphStore, extractor EntityExtractor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		embedder:    embedder,
		vectors:     vectors,
		graph:       graph,
		extractor:   extractor,
		entityCache: cache.New(entityCacheTTL, 2*entityCacheTTL),
		logger:      logger,
		backoff:     retryBackoff,
	}
}

// Retrieve executes one retrieval pass for a planned request.
// An embedding failure or a vector stage failure aborts the request with a
// typed error. A graph stage failure degrades the request to vector only
// evidence, recorded in the result's diagnostics. An empty result is not an
// error.
func (e *Engine) Retrieve(ctx context.Context, request *model.RetrievalRequest) (*model.RetrievalResult, error) {
	embedding, err := e.embedQuery(ctx, request)
	if err != nil {
		return nil, &model.EmbeddingError{Err: err}
	}

	hits, err := e.searchVectors(ctx, request, embedding)
	if err != nil {
		mismatchErr := &model.DimensionMismatchError{}
		if errors.As(err, &mismatchErr) {
			return nil, &model.EmbeddingError{Err: err}
		}
		return nil, &model.RetrievalError{Stage: model.StageVector, Err: err}
	}

	vectorUnits := vectorEvidence(request, hits)
	seeds := e.extractSeeds(ctx, request, hits)

	graphUnits, err := e.expandGraph(ctx, request, seeds)
	if err != nil {
		e.logger.Warn("Graph stage failed, degrading to vector only evidence", slog.String("error", err.Error()))
		graphUnits = nil
	}

	evidence, citations := fuseAndBudget(request, vectorUnits, graphUnits)

	result := &model.RetrievalResult{
		Evidence:  evidence,
		Citations: citations,
		Diagnostics: model.Diagnostics{
			VectorHitsCount:  len(hits),
			GraphContextUsed: len(graphUnits) > 0,
			EvidenceCount:    len(evidence),
		},
	}
	for _, unit := range evidence {
		if unit.Provenance.Kind == model.ProvenanceNode {
			result.Diagnostics.ContextNodesUsed++
		} else {
			result.Diagnostics.ContextQueriesUsed++
		}
	}

	e.logger.Debug("Retrieval pass complete",
		slog.String("mode", string(request.Mode)),
		slog.Int("vectorHits", len(hits)),
		slog.Int("graphUnits", len(graphUnits)),
		slog.Int("evidence", len(evidence)))

	return result, nil
}

// embedQuery embeds the request's query text. Provider failures are fatal
// and not retried.
func (e *Engine) embedQuery(ctx context.Context, request *model.RetrievalRequest) ([]float32, error) {
	stageCtx, cancel := e.stageContext(ctx, request)
	defer cancel()

	embedding, err := e.embedder.EmbedText(stageCtx, request.QueryText)
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}

	return embedding, nil
}

func (e *Engine) searchVectors(ctx context.Context, request *model.RetrievalRequest, embedding []float32) ([]*model.VectorHit, error) {
	stageCtx, cancel := e.stageContext(ctx, request)
	defer cancel()

	var hits []*model.VectorHit
	err := e.withRetry(stageCtx, func() error {
		var err error
		hits, err = e.vectors.SearchVectors(stageCtx, request.Collection, embedding, request.TopKVector)
		return err
	})
	if err != nil {
		return nil, err
	}

	return hits, nil
}

// expandGraph resolves the extracted seeds and traverses outward from each,
// merging reached nodes deterministically: shortest distance wins, equal
// distances keep the path through the highest scoring seed. A store failure
// after retry aborts the whole stage.
func (e *Engine) expandGraph(ctx context.Context, request *model.RetrievalRequest, seeds []seedRef) ([]*model.EvidenceUnit, error) {
	if len(seeds) == 0 || request.MaxHops <= 0 {
		return nil, nil
	}

	stageCtx, cancel := e.stageContext(ctx, request)
	defer cancel()

	type resolvedSeed struct {
		node  *model.Node
		score float64
	}

	var resolved []resolvedSeed
	seenSeeds := map[int64]bool{}
	for _, s := range seeds {
		var nodes []*model.Node
		err := e.withRetry(stageCtx, func() error {
			var err error
			nodes, err = e.graph.ResolveSeeds(stageCtx, s.ref, request.Labels)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, node := range nodes {
			if seenSeeds[node.ID] || !labelAllowed(node.Label, request.Labels) {
				continue
			}
			seenSeeds[node.ID] = true
			resolved = append(resolved, resolvedSeed{node: node, score: s.score})
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].score > resolved[j].score
	})

	type reachedNode struct {
		row   *model.TraversalRow
		score float64
		order int
	}

	reached := map[int64]*reachedNode{}
	order := 0
	for _, rs := range resolved {
		var rows []*model.TraversalRow
		err := e.withRetry(stageCtx, func() error {
			var err error
			rows, err = e.graph.Traverse(stageCtx, rs.node.ID, request.EdgeTypes, request.MaxHops, request.MaxGraphFanout)
			return err
		})
		if err != nil {
			return nil, err
		}

		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Distance != rows[j].Distance {
				return rows[i].Distance < rows[j].Distance
			}
			return rows[i].Node.Ref().String() < rows[j].Node.Ref().String()
		})

		for _, row := range rows {
			if row.Distance > request.MaxHops {
				continue
			}
			if !labelAllowed(row.Node.Label, request.Labels) {
				continue
			}

			existing := reached[row.Node.ID]
			if existing == nil {
				reached[row.Node.ID] = &reachedNode{row: row, score: rs.score, order: order}
				order++
			} else if row.Distance < existing.row.Distance {
				// shorter path wins, equal distance keeps the earlier
				// (higher scoring) seed's path
				existing.row = row
				existing.score = rs.score
			}
		}
	}

	entries := make([]*reachedNode, 0, len(reached))
	for _, entry := range reached {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})

	units := make([]*model.EvidenceUnit, 0, len(entries))
	for _, entry := range entries {
		score := entry.score / float64(1+entry.row.Distance)
		provenance := graphProvenance(request, entry.row)
		units = append(units, &model.EvidenceUnit{
			ID:          provenance.Key(),
			Origin:      model.OriginGraph,
			Text:        renderNodeText(entry.row.Node),
			Score:       score,
			GraphScore:  score,
			HopDistance: entry.row.Distance,
			Provenance:  provenance,
		})
	}

	return units, nil
}

// withRetry runs a store call and retries it once after a short backoff.
// Dimension mismatches are not transient and skip the retry.
func (e *Engine) withRetry(ctx context.Context, call func() error) error {
	err := call()
	if err == nil {
		return nil
	}

	mismatchErr := &model.DimensionMismatchError{}
	if errors.As(err, &mismatchErr) {
		return err
	}

	select {
	case <-time.After(e.backoff):
	case <-ctx.Done():
		return err
	}

	return call()
}

func (e *Engine) stageContext(ctx context.Context, request *model.RetrievalRequest) (context.Context, context.CancelFunc) {
	if request.StageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, request.StageTimeout)
}

func vectorEvidence(request *model.RetrievalRequest, hits []*model.VectorHit) []*model.EvidenceUnit {
	kind := recordKind(request)

	units := make([]*model.EvidenceUnit, 0, len(hits))
	for _, hit := range hits {
		provenance := model.Provenance{
			Kind:       kind,
			Collection: request.Collection,
			RecordID:   hit.Record.ID,
		}
		units = append(units, &model.EvidenceUnit{
			ID:          provenance.Key(),
			Origin:      model.OriginVector,
			Text:        hit.Record.SourceText,
			Score:       hit.Similarity,
			VectorScore: hit.Similarity,
			Provenance:  provenance,
		})
	}

	return units
}

// graphProvenance builds the provenance of a reached node. A node carrying
// the request's self label mirrors a vector record, so it gets record
// provenance and collapses with its vector twin during deduplication.
func graphProvenance(request *model.RetrievalRequest, row *model.TraversalRow) model.Provenance {
	if request.SelfLabel != "" && row.Node.Label == request.SelfLabel {
		return model.Provenance{
			Kind:       recordKind(request),
			Collection: request.Collection,
			RecordID:   row.Node.Key,
			EdgePath:   row.Path,
		}
	}

	return model.Provenance{
		Kind:      model.ProvenanceNode,
		NodeLabel: row.Node.Label,
		NodeKey:   row.Node.Key,
		EdgePath:  row.Path,
	}
}

func recordKind(request *model.RetrievalRequest) model.ProvenanceKind {
	if request.Mode == model.ModeStructuredQuery {
		return model.ProvenanceQuery
	}
	return model.ProvenanceChunk
}

// renderNodeText renders a reached node for the generation context.
// Nodes ingested with a text property use it verbatim.
func renderNodeText(node *model.Node) string {
	if text, ok := node.Properties["text"].(string); ok && text != "" {
		return text
	}
	if name, ok := node.Properties["name"].(string); ok && name != "" {
		return fmt.Sprintf("%s (%s)", name, node.Ref())
	}
	return node.Ref().String()
}

func labelAllowed(label model.NodeLabel, labels []model.NodeLabel) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
