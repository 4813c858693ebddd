package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/compumax/graphrag/helper"
	"github.com/compumax/graphrag/model"
	loadSql "github.com/compumax/graphrag/sql"
)

// VectorsDBHandlerFunctions defines the interface for vector collection operations.
type VectorsDBHandlerFunctions interface {
	CreateCollection(name string, dimension int) error
	CollectionDimension(name string) (int, error)
	UpsertVector(collection string, record *model.VectorRecord) error
	SelectVector(collection string, recordID string) (*model.VectorRecord, error)
	SearchVectors(ctx context.Context, collection string, embedding []float32, topK int) ([]*model.VectorHit, error)
	ResetCollection(collection string) error
}

// VectorsDBHandler handles vector collection database operations
type VectorsDBHandler struct {
	db *helper.Database
}

// NewVectorsDBHandler creates a new vectors database handler.
// It loads the vector SQL functions and creates the collection tables.
// If force is true, it will reload the SQL functions even if they already exist.
func NewVectorsDBHandler(db *helper.Database, force bool) (*VectorsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	vectorsDbHandler := &VectorsDBHandler{
		db: db,
	}

	err := loadSql.LoadVectorsSql(vectorsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load vectors sql", err)
	}

	_, err = vectorsDbHandler.db.Instance.Exec(`SELECT init_vectors();`)
	if err != nil {
		return nil, helper.NewError("create tables", err)
	}

	db.Logger.Info("Initialized VectorsDBHandler")

	return vectorsDbHandler, nil
}

// CreateCollection registers a collection with a fixed embedding dimension.
// Registering an existing collection with the same dimension is a no-op;
// a different dimension fails.
func (h *VectorsDBHandler) CreateCollection(name string, dimension int) error {
	_, err := h.db.Instance.Exec(
		`SELECT create_collection($1, $2)`,
		name,
		dimension,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	h.db.Logger.Info("Checked/created vector collection", slog.String("collection", name), slog.Int("dimension", dimension))

	return nil
}

// CollectionDimension returns the fixed embedding dimension of a collection
func (h *VectorsDBHandler) CollectionDimension(name string) (int, error) {
	var dimension int
	err := h.db.Instance.QueryRow(
		`SELECT select_collection_dimension($1)`,
		name,
	).Scan(&dimension)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return dimension, nil
}

// UpsertVector writes a vector record into a collection.
// Fails with a dimension mismatch error if the embedding length does not
// match the collection's dimension.
func (h *VectorsDBHandler) UpsertVector(collection string, record *model.VectorRecord) error {
	dimension, err := h.CollectionDimension(collection)
	if err != nil {
		return err
	}
	if len(record.Embedding) != dimension {
		return &model.DimensionMismatchError{Collection: collection, Want: dimension, Got: len(record.Embedding)}
	}

	_, err = h.db.Instance.Exec(
		`SELECT upsert_vector($1, $2, $3, $4, $5)`,
		collection,
		record.ID,
		pgvector.NewVector(record.Embedding),
		record.SourceText,
		record.Metadata,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectVector retrieves a single record by id (without its embedding)
func (h *VectorsDBHandler) SelectVector(collection string, recordID string) (*model.VectorRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_vector($1, $2)`,
		collection,
		recordID,
	)

	record := &model.VectorRecord{}
	var metadataJSON []byte
	err := row.Scan(
		&record.ID,
		&record.SourceText,
		&metadataJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
		return nil, helper.NewError("unmarshaling metadata", err)
	}

	return record, nil
}

// SearchVectors returns the topK nearest neighbors in a collection by
// cosine similarity, descending. Fails on dimension mismatch.
func (h *VectorsDBHandler) SearchVectors(ctx context.Context, collection string, embedding []float32, topK int) ([]*model.VectorHit, error) {
	dimension, err := h.CollectionDimension(collection)
	if err != nil {
		return nil, err
	}
	if len(embedding) != dimension {
		return nil, &model.DimensionMismatchError{Collection: collection, Want: dimension, Got: len(embedding)}
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_vectors($1, $2, $3)`,
		collection,
		pgvector.NewVector(embedding),
		topK,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []*model.VectorHit
	for rows.Next() {
		record := &model.VectorRecord{}
		hit := &model.VectorHit{Record: record}

		var metadataJSON []byte
		err := rows.Scan(
			&record.ID,
			&record.SourceText,
			&metadataJSON,
			&record.CreatedAt,
			&hit.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return nil, helper.NewError("unmarshaling metadata", err)
		}

		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

// ResetCollection deletes all records in a collection (bulk corpus reset)
func (h *VectorsDBHandler) ResetCollection(collection string) error {
	_, err := h.db.Instance.Exec(
		`SELECT reset_collection($1)`,
		collection,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	h.db.Logger.Info("Reset vector collection", slog.String("collection", collection))

	return nil
}
