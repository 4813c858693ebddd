package retrieval

import (
	"context"
	"log/slog"

	"github.com/patrickmn/go-cache"

	"github.com/compumax/graphrag/model"
)

// Metadata keys carrying graph references on vector records. They are soft
// foreign keys with no enforced integrity; references that resolve to
// nothing are skipped silently.
const (
	metadataKeyNodeRefs = "node_refs" // "Label:key" strings
	metadataKeyTables   = "tables"    // table node keys
	metadataKeyColumns  = "columns"   // column node keys
	metadataKeyEntities = "entities"  // entity names, matched across labels
)

// seedRef is a candidate graph entry point derived from a vector hit,
// carrying the similarity of the hit that produced it.
type seedRef struct {
	ref   model.NodeRef
	score float64
}

// extractSeeds derives graph expansion seeds from the vector hits' metadata
// and, in free text mode with an extractor present, from named entities
// recognized in the hit text. Hits arrive in descending similarity order,
// so the first occurrence of a reference carries its best score.
func (e *Engine) extractSeeds(ctx context.Context, request *model.RetrievalRequest, hits []*model.VectorHit) []seedRef {
	var seeds []seedRef
	seen := map[string]bool{}
	add := func(ref model.NodeRef, score float64) {
		if ref.Key == "" || seen[ref.String()] {
			return
		}
		seen[ref.String()] = true
		seeds = append(seeds, seedRef{ref: ref, score: score})
	}

	for _, hit := range hits {
		for _, raw := range hit.Record.Metadata.StringSlice(metadataKeyNodeRefs) {
			add(model.ParseNodeRef(raw), hit.Similarity)
		}
		for _, table := range hit.Record.Metadata.StringSlice(metadataKeyTables) {
			add(model.NodeRef{Label: model.NodeLabelTable, Key: table}, hit.Similarity)
		}
		for _, column := range hit.Record.Metadata.StringSlice(metadataKeyColumns) {
			add(model.NodeRef{Label: model.NodeLabelColumn, Key: column}, hit.Similarity)
		}
		for _, name := range hit.Record.Metadata.StringSlice(metadataKeyEntities) {
			add(model.NodeRef{Key: name}, hit.Similarity)
		}

		if e.extractor != nil && request.Mode == model.ModeFreeText {
			for _, name := range e.recognizeEntities(ctx, hit.Record.SourceText) {
				add(model.NodeRef{Key: name}, hit.Similarity)
			}
		}
	}

	return seeds
}

// recognizeEntities runs the entity extractor on a hit text, caching
// results per text. Extraction failures only cost a seed source, they never
// fail the request.
func (e *Engine) recognizeEntities(ctx context.Context, text string) []string {
	if text == "" {
		return nil
	}

	if cached, ok := e.entityCache.Get(text); ok {
		return cached.([]string)
	}

	entities, err := e.extractor.ExtractEntities(ctx, text)
	if err != nil {
		e.logger.Warn("Entity extraction failed, skipping seed source", slog.String("error", err.Error()))
		return nil
	}

	e.entityCache.Set(text, entities, cache.DefaultExpiration)

	return entities
}
