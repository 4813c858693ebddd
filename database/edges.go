package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/compumax/graphrag/helper"
	"github.com/compumax/graphrag/model"
	loadSql "github.com/compumax/graphrag/sql"
)

// EdgesDBHandlerFunctions defines the interface for edge database operations.
type EdgesDBHandlerFunctions interface {
	UpsertEdge(from model.NodeRef, to model.NodeRef, edgeType model.EdgeType, properties model.Metadata) (*model.Edge, error)
	SelectEdge(id int64) (*model.Edge, error)
	SelectEdgesFromNode(nodeID int64, edgeType *model.EdgeType) ([]*model.Edge, error)
	DeleteEdge(id int64) error
	TraverseFromNode(ctx context.Context, seedID int64, edgeTypes []model.EdgeType, maxHops int, maxFanout int) ([]*model.TraversalRow, error)
}

// EdgesDBHandler handles edge-related database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It loads the edge SQL functions and creates the edges table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	_, err = edgesDbHandler.db.Instance.Exec(`SELECT init_edges();`)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// UpsertEdge inserts a directed, typed edge between two existing nodes or
// merges properties into an existing one.
func (h *EdgesDBHandler) UpsertEdge(from model.NodeRef, to model.NodeRef, edgeType model.EdgeType, properties model.Metadata) (*model.Edge, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_edge($1, $2, $3, $4, $5, $6)`,
		from.Label,
		from.Key,
		to.Label,
		to.Key,
		edgeType,
		properties,
	)

	return scanEdge(row)
}

// SelectEdge retrieves an edge by ID
func (h *EdgesDBHandler) SelectEdge(id int64) (*model.Edge, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_edge($1)`,
		id,
	)

	return scanEdge(row)
}

// SelectEdgesFromNode retrieves outgoing edges of a node, optionally
// filtered by edge type.
func (h *EdgesDBHandler) SelectEdgesFromNode(nodeID int64, edgeType *model.EdgeType) ([]*model.Edge, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_edges_from_node($1, $2)`,
		nodeID,
		edgeType,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// DeleteEdge deletes an edge by ID
func (h *EdgesDBHandler) DeleteEdge(id int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_edge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// TraverseFromNode expands the graph outward from a seed node, bounded by
// maxHops and maxFanout neighbors per node and hop. Reached nodes come back
// once each with their smallest hop distance and the edge path from the seed.
func (h *EdgesDBHandler) TraverseFromNode(ctx context.Context, seedID int64, edgeTypes []model.EdgeType, maxHops int, maxFanout int) ([]*model.TraversalRow, error) {
	edgeTypeStrings := make([]string, len(edgeTypes))
	for i, et := range edgeTypes {
		edgeTypeStrings[i] = string(et)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM traverse_from_node($1, $2, $3, $4)`,
		seedID,
		pq.Array(edgeTypeStrings),
		maxHops,
		maxFanout,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.TraversalRow
	for rows.Next() {
		node := &model.Node{}
		result := &model.TraversalRow{Node: node}

		var propertiesJSON []byte
		err := rows.Scan(
			&node.ID,
			&node.Label,
			&node.Key,
			&propertiesJSON,
			&node.CreatedAt,
			&result.Distance,
			pq.Array(&result.Path),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if err := json.Unmarshal(propertiesJSON, &node.Properties); err != nil {
			return nil, helper.NewError("unmarshaling properties", err)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

func scanEdge(row rowScanner) (*model.Edge, error) {
	edge := &model.Edge{}

	var propertiesJSON []byte
	err := row.Scan(
		&edge.ID,
		&edge.SourceID,
		&edge.TargetID,
		&edge.EdgeType,
		&propertiesJSON,
		&edge.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	if err := json.Unmarshal(propertiesJSON, &edge.Properties); err != nil {
		return nil, helper.NewError("unmarshaling properties", err)
	}

	return edge, nil
}
