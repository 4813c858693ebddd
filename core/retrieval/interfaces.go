package retrieval

import (
	"context"

	"github.com/compumax/graphrag/model"
)

// Embedder turns query text into a fixed length vector.
// Implementations must be deterministic for identical input.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the slice of the vector database the engine needs:
// nearest neighbor search in one collection, ordered by descending
// similarity in [0, 1].
type VectorStore interface {
	SearchVectors(ctx context.Context, collection string, embedding []float32, topK int) ([]*model.VectorHit, error)
}

// GraphStore is the slice of the graph database the engine needs.
// ResolveSeeds looks a reference up by key (restricted to a label set when
// the reference carries no label) and returns an empty slice for unknown
// keys, so dangling metadata references can be skipped silently.
// Traverse expands outward from a seed node, bounded by hops and fanout.
type GraphStore interface {
	ResolveSeeds(ctx context.Context, ref model.NodeRef, labels []model.NodeLabel) ([]*model.Node, error)
	Traverse(ctx context.Context, seedID int64, edgeTypes []model.EdgeType, maxHops int, maxFanout int) ([]*model.TraversalRow, error)
}

// EntityExtractor recognizes named entities in hit text, used as an extra
// seed source in free text mode. Optional; the engine works without one.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]string, error)
}
