package graph

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/compumax/graphrag/database"
	"github.com/compumax/graphrag/model"
)

// Store adapts the node and edge handlers into the seed resolution and
// traversal surface the retrieval engine expects.
type Store struct {
	nodes database.NodesDBHandlerFunctions
	edges database.EdgesDBHandlerFunctions
}

// NewStore creates a graph store over the given handlers
func NewStore(nodes database.NodesDBHandlerFunctions, edges database.EdgesDBHandlerFunctions) *Store {
	return &Store{
		nodes: nodes,
		edges: edges,
	}
}

// ResolveSeeds looks a seed reference up in the graph. A labeled reference
// resolves to at most one node; a bare key matches across the given label
// set. References that resolve to nothing return an empty slice, they are
// soft foreign keys and may dangle.
func (s *Store) ResolveSeeds(ctx context.Context, ref model.NodeRef, labels []model.NodeLabel) ([]*model.Node, error) {
	if ref.Label != "" {
		node, err := s.nodes.SelectNode(ref.Label, ref.Key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []*model.Node{node}, nil
	}

	nodes, err := s.nodes.SelectNodesByKey(ctx, ref.Key, labels)
	if err != nil {
		return nil, err
	}

	// fixed order so equal scoring seeds resolve identically across runs
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Ref().String() < nodes[j].Ref().String()
	})

	return nodes, nil
}

// Traverse expands outward from a seed node, bounded by hops and fanout
func (s *Store) Traverse(ctx context.Context, seedID int64, edgeTypes []model.EdgeType, maxHops int, maxFanout int) ([]*model.TraversalRow, error) {
	return s.edges.TraverseFromNode(ctx, seedID, edgeTypes, maxHops, maxFanout)
}
