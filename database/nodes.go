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

// NodesDBHandlerFunctions defines the interface for node database operations.
type NodesDBHandlerFunctions interface {
	UpsertNode(label model.NodeLabel, key string, properties model.Metadata) (*model.Node, error)
	SelectNode(label model.NodeLabel, key string) (*model.Node, error)
	SelectNodesByKey(ctx context.Context, key string, labels []model.NodeLabel) ([]*model.Node, error)
	DeleteNode(label model.NodeLabel, key string) error
	ResetGraph() error
}

// NodesDBHandler handles node-related database operations
type NodesDBHandler struct {
	db *helper.Database
}

// NewNodesDBHandler creates a new nodes database handler.
// It loads the node SQL functions and creates the nodes table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewNodesDBHandler(db *helper.Database, force bool) (*NodesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	nodesDbHandler := &NodesDBHandler{
		db: db,
	}

	err := loadSql.LoadNodesSql(nodesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load nodes sql", err)
	}

	_, err = nodesDbHandler.db.Instance.Exec(`SELECT init_nodes();`)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized NodesDBHandler")

	return nodesDbHandler, nil
}

// UpsertNode inserts a node or merges properties into an existing one.
// Uniqueness is enforced per label on the node key.
func (h *NodesDBHandler) UpsertNode(label model.NodeLabel, key string, properties model.Metadata) (*model.Node, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_node($1, $2, $3)`,
		label,
		key,
		properties,
	)

	return scanNode(row)
}

// SelectNode retrieves a node by label and key
func (h *NodesDBHandler) SelectNode(label model.NodeLabel, key string) (*model.Node, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_node($1, $2)`,
		label,
		key,
	)

	return scanNode(row)
}

// SelectNodesByKey retrieves nodes matching a key across labels, optionally
// restricted to a label set. An unknown key returns an empty slice, not an
// error; seed resolution relies on that to skip dangling references.
func (h *NodesDBHandler) SelectNodesByKey(ctx context.Context, key string, labels []model.NodeLabel) ([]*model.Node, error) {
	labelStrings := make([]string, len(labels))
	for i, l := range labels {
		labelStrings[i] = string(l)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_nodes_by_key($1, $2)`,
		key,
		pq.Array(labelStrings),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var nodes []*model.Node
	for rows.Next() {
		node := &model.Node{}

		var propertiesJSON []byte
		err := rows.Scan(
			&node.ID,
			&node.Label,
			&node.Key,
			&propertiesJSON,
			&node.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if err := json.Unmarshal(propertiesJSON, &node.Properties); err != nil {
			return nil, helper.NewError("unmarshaling properties", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

// DeleteNode deletes a node by label and key
func (h *NodesDBHandler) DeleteNode(label model.NodeLabel, key string) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_node($1, $2)`,
		label,
		key,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// ResetGraph deletes all nodes and edges (bulk corpus reset)
func (h *NodesDBHandler) ResetGraph() error {
	_, err := h.db.Instance.Exec(`SELECT reset_graph()`)
	if err != nil {
		return helper.NewError("exec", err)
	}

	h.db.Logger.Info("Reset graph store")

	return nil
}

// rowScanner covers sql.Row and sql.Rows for node scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*model.Node, error) {
	node := &model.Node{}

	var propertiesJSON []byte
	err := row.Scan(
		&node.ID,
		&node.Label,
		&node.Key,
		&propertiesJSON,
		&node.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	if err := json.Unmarshal(propertiesJSON, &node.Properties); err != nil {
		return nil, helper.NewError("unmarshaling properties", err)
	}

	return node, nil
}
