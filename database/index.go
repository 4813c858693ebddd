package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/compumax/graphrag/helper"
)

// ChangeIndexType swaps the approximate nearest neighbor index of a
// collection between HNSW and IVFFlat.
// params holds optional index parameters:
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
//
// The index is a partial expression index per collection, since the shared
// vectors table stores embeddings untyped and each collection fixes its own
// dimension.
func (h *VectorsDBHandler) ChangeIndexType(ctx context.Context, collection string, indexType string, params map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	dimension, err := h.CollectionDimension(collection)
	if err != nil {
		return err
	}

	indexName := fmt.Sprintf("idx_vectors_embedding_%s", collection)

	// Drop existing index
	_, err = h.db.Instance.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, pq.QuoteIdentifier(indexName)))
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.db.Logger.Info("Dropped existing vector index", slog.String("collection", collection))

	var createIndexSQL string
	switch indexType {
	case "hnsw":
		m := 16
		efConstruction := 64

		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON vectors USING hnsw %s WITH (m = %d, ef_construction = %d) WHERE collection = %s;`,
			pq.QuoteIdentifier(indexName), indexTarget(dimension), m, efConstruction, pq.QuoteLiteral(collection),
		)

	case "ivfflat":
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON vectors USING ivfflat %s WITH (lists = %d) WHERE collection = %s;`,
			pq.QuoteIdentifier(indexName), indexTarget(dimension), lists, pq.QuoteLiteral(collection),
		)

	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Created vector index",
		slog.String("collection", collection),
		slog.String("type", indexType))

	return nil
}

func indexTarget(dimension int) string {
	return fmt.Sprintf(`((embedding::vector(%d)) vector_cosine_ops)`, dimension)
}
