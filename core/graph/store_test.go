package graph

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/compumax/graphrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNodesHandler struct {
	byRef map[string]*model.Node
	err   error
}

func (f *fakeNodesHandler) UpsertNode(label model.NodeLabel, key string, properties model.Metadata) (*model.Node, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeNodesHandler) SelectNode(label model.NodeLabel, key string) (*model.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	ref := model.NodeRef{Label: label, Key: key}
	node, ok := f.byRef[ref.String()]
	if !ok {
		return nil, fmt.Errorf("scan: %w", sql.ErrNoRows)
	}
	return node, nil
}

func (f *fakeNodesHandler) SelectNodesByKey(ctx context.Context, key string, labels []model.NodeLabel) ([]*model.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	var nodes []*model.Node
	for _, node := range f.byRef {
		if node.Key != key {
			continue
		}
		for _, label := range labels {
			if node.Label == label {
				nodes = append(nodes, node)
				break
			}
		}
	}
	return nodes, nil
}

func (f *fakeNodesHandler) DeleteNode(label model.NodeLabel, key string) error { return nil }
func (f *fakeNodesHandler) ResetGraph() error                                  { return nil }

type fakeEdgesHandler struct {
	rows     []*model.TraversalRow
	lastSeed int64
}

func (f *fakeEdgesHandler) UpsertEdge(from model.NodeRef, to model.NodeRef, edgeType model.EdgeType, properties model.Metadata) (*model.Edge, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeEdgesHandler) SelectEdge(id int64) (*model.Edge, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeEdgesHandler) SelectEdgesFromNode(nodeID int64, edgeType *model.EdgeType) ([]*model.Edge, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeEdgesHandler) DeleteEdge(id int64) error { return nil }

func (f *fakeEdgesHandler) TraverseFromNode(ctx context.Context, seedID int64, edgeTypes []model.EdgeType, maxHops int, maxFanout int) ([]*model.TraversalRow, error) {
	f.lastSeed = seedID
	return f.rows, nil
}

func TestStoreResolveSeeds(t *testing.T) {
	alice := &model.Node{ID: 1, Label: model.NodeLabelPatient, Key: "alice"}
	drAlice := &model.Node{ID: 2, Label: model.NodeLabelDoctor, Key: "alice"}
	store := NewStore(&fakeNodesHandler{byRef: map[string]*model.Node{
		"Patient:alice": alice,
		"Doctor:alice":  drAlice,
	}}, &fakeEdgesHandler{})

	t.Run("Labeled reference resolves exactly", func(t *testing.T) {
		nodes, err := store.ResolveSeeds(context.Background(), model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"}, nil)
		assert.NoError(t, err, "Expected ResolveSeeds to not return an error")
		require.Len(t, nodes, 1, "Expected exactly one node for a labeled reference")
		assert.Equal(t, alice, nodes[0], "Expected the patient node")
	})

	t.Run("Bare key matches across the label set", func(t *testing.T) {
		nodes, err := store.ResolveSeeds(context.Background(), model.NodeRef{Key: "alice"}, model.EntityLabels())
		assert.NoError(t, err, "Expected ResolveSeeds to not return an error")
		require.Len(t, nodes, 2, "Expected both labels for the bare key")

		// the handler returns rows unordered, resolution order must not depend on it
		assert.Equal(t, drAlice, nodes[0], "Expected label ordered resolution")
		assert.Equal(t, alice, nodes[1], "Expected label ordered resolution")
	})

	t.Run("Dangling labeled reference resolves to nothing", func(t *testing.T) {
		nodes, err := store.ResolveSeeds(context.Background(), model.NodeRef{Label: model.NodeLabelPatient, Key: "nobody"}, nil)
		assert.NoError(t, err, "Expected a dangling reference to not be an error")
		assert.Empty(t, nodes, "Expected no nodes for a dangling reference")
	})

	t.Run("Store failure propagates", func(t *testing.T) {
		broken := NewStore(&fakeNodesHandler{err: fmt.Errorf("connection refused")}, &fakeEdgesHandler{})
		_, err := broken.ResolveSeeds(context.Background(), model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"}, nil)
		assert.Error(t, err, "Expected connectivity failures to propagate")
	})
}

func TestStoreTraverse(t *testing.T) {
	edges := &fakeEdgesHandler{rows: []*model.TraversalRow{
		{Node: &model.Node{ID: 2, Label: model.NodeLabelCondition, Key: "migraine"}, Distance: 1},
	}}
	store := NewStore(&fakeNodesHandler{}, edges)

	rows, err := store.Traverse(context.Background(), 1, []model.EdgeType{model.EdgeTypeHasCondition}, 1, 10)
	assert.NoError(t, err, "Expected Traverse to not return an error")
	require.Len(t, rows, 1, "Expected the handler rows to pass through")
	assert.Equal(t, int64(1), edges.lastSeed, "Expected the seed id to pass through")
}
