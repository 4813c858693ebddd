package database

import (
	"context"
	"testing"

	"github.com/compumax/graphrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initGraphHandlers(t *testing.T) (*NodesDBHandler, *EdgesDBHandler) {
	database := initDB(t)

	nodesDbHandler, err := NewNodesDBHandler(database, true)
	require.NoError(t, err, "Expected NewNodesDBHandler to not return an error")

	edgesDbHandler, err := NewEdgesDBHandler(database, true)
	require.NoError(t, err, "Expected NewEdgesDBHandler to not return an error")

	err = nodesDbHandler.ResetGraph()
	require.NoError(t, err, "Expected ResetGraph to not return an error")

	return nodesDbHandler, edgesDbHandler
}

func TestGraphNewHandlers(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewNodesDBHandler", func(t *testing.T) {
		nodesDbHandler, err := NewNodesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewNodesDBHandler to not return an error")
		require.NotNil(t, nodesDbHandler, "Expected NewNodesDBHandler to return a non-nil instance")
		require.NotNil(t, nodesDbHandler.db, "Expected NewNodesDBHandler to have a non-nil database instance")
	})

	t.Run("Valid call NewEdgesDBHandler", func(t *testing.T) {
		edgesDbHandler, err := NewEdgesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewEdgesDBHandler to not return an error")
		require.NotNil(t, edgesDbHandler, "Expected NewEdgesDBHandler to return a non-nil instance")
		require.NotNil(t, edgesDbHandler.db, "Expected NewEdgesDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewNodesDBHandler with nil database", func(t *testing.T) {
		_, err := NewNodesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating NodesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewEdgesDBHandler with nil database", func(t *testing.T) {
		_, err := NewEdgesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating EdgesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestNodesUpsert(t *testing.T) {
	nodesDbHandler, _ := initGraphHandlers(t)

	t.Run("Upsert and select node", func(t *testing.T) {
		node, err := nodesDbHandler.UpsertNode(model.NodeLabelPatient, "alice", model.Metadata{"age": 42})
		assert.NoError(t, err, "Expected UpsertNode to not return an error")
		require.NotNil(t, node, "Expected UpsertNode to return the node")
		assert.NotEmpty(t, node.ID, "Expected upserted node to have an ID")
		assert.Equal(t, model.NodeLabelPatient, node.Label, "Expected node label to match")
		assert.Equal(t, "alice", node.Key, "Expected node key to match")

		selected, err := nodesDbHandler.SelectNode(model.NodeLabelPatient, "alice")
		assert.NoError(t, err, "Expected SelectNode to not return an error")
		assert.Equal(t, node.ID, selected.ID, "Expected selected node to be the upserted one")
	})

	t.Run("Upsert merges properties", func(t *testing.T) {
		_, err := nodesDbHandler.UpsertNode(model.NodeLabelPatient, "alice", model.Metadata{"ward": "B2"})
		assert.NoError(t, err, "Expected UpsertNode to not return an error")

		selected, err := nodesDbHandler.SelectNode(model.NodeLabelPatient, "alice")
		assert.NoError(t, err, "Expected SelectNode to not return an error")
		assert.Equal(t, float64(42), selected.Properties["age"], "Expected existing property to survive the merge")
		assert.Equal(t, "B2", selected.Properties["ward"], "Expected new property to be merged in")
	})

	t.Run("Same key under different labels", func(t *testing.T) {
		_, err := nodesDbHandler.UpsertNode(model.NodeLabelDoctor, "alice", model.Metadata{})
		assert.NoError(t, err, "Expected UpsertNode to not return an error")

		nodes, err := nodesDbHandler.SelectNodesByKey(context.Background(), "alice", nil)
		assert.NoError(t, err, "Expected SelectNodesByKey to not return an error")
		require.Len(t, nodes, 2, "Expected both labels to hold a node for the key")
		assert.Equal(t, model.NodeLabelDoctor, nodes[0].Label, "Expected label ordered rows")
		assert.Equal(t, model.NodeLabelPatient, nodes[1].Label, "Expected label ordered rows")

		nodes, err = nodesDbHandler.SelectNodesByKey(context.Background(), "alice", []model.NodeLabel{model.NodeLabelPatient})
		assert.NoError(t, err, "Expected SelectNodesByKey to not return an error")
		require.Len(t, nodes, 1, "Expected label filter to restrict the result")
		assert.Equal(t, model.NodeLabelPatient, nodes[0].Label, "Expected the patient node")
	})

	t.Run("Unknown key returns empty slice", func(t *testing.T) {
		nodes, err := nodesDbHandler.SelectNodesByKey(context.Background(), "nobody", nil)
		assert.NoError(t, err, "Expected SelectNodesByKey to not return an error for unknown key")
		assert.Empty(t, nodes, "Expected no nodes for unknown key")
	})

	t.Run("Delete node", func(t *testing.T) {
		err := nodesDbHandler.DeleteNode(model.NodeLabelDoctor, "alice")
		assert.NoError(t, err, "Expected DeleteNode to not return an error")

		_, err = nodesDbHandler.SelectNode(model.NodeLabelDoctor, "alice")
		assert.Error(t, err, "Expected SelectNode to fail for deleted node")
	})
}

func TestEdgesUpsert(t *testing.T) {
	nodesDbHandler, edgesDbHandler := initGraphHandlers(t)

	_, err := nodesDbHandler.UpsertNode(model.NodeLabelPatient, "alice", model.Metadata{})
	require.NoError(t, err, "Expected UpsertNode to not return an error")
	_, err = nodesDbHandler.UpsertNode(model.NodeLabelCondition, "migraine", model.Metadata{})
	require.NoError(t, err, "Expected UpsertNode to not return an error")

	t.Run("Upsert edge between existing nodes", func(t *testing.T) {
		edge, err := edgesDbHandler.UpsertEdge(
			model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"},
			model.NodeRef{Label: model.NodeLabelCondition, Key: "migraine"},
			model.EdgeTypeHasCondition,
			model.Metadata{"since": "2024"},
		)
		assert.NoError(t, err, "Expected UpsertEdge to not return an error")
		require.NotNil(t, edge, "Expected UpsertEdge to return the edge")
		assert.NotEmpty(t, edge.ID, "Expected upserted edge to have an ID")
		assert.Equal(t, model.EdgeTypeHasCondition, edge.EdgeType, "Expected edge type to match")

		selected, err := edgesDbHandler.SelectEdge(edge.ID)
		assert.NoError(t, err, "Expected SelectEdge to not return an error")
		assert.Equal(t, edge.SourceID, selected.SourceID, "Expected source to match")
		assert.Equal(t, edge.TargetID, selected.TargetID, "Expected target to match")
	})

	t.Run("Upsert edge with missing endpoint", func(t *testing.T) {
		_, err := edgesDbHandler.UpsertEdge(
			model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"},
			model.NodeRef{Label: model.NodeLabelMedication, Key: "unknown"},
			model.EdgeTypePrescribed,
			nil,
		)
		assert.Error(t, err, "Expected error for edge to missing node")
		assert.Contains(t, err.Error(), "edge endpoints must exist", "Expected endpoint error message")
	})

	t.Run("Select edges from node with type filter", func(t *testing.T) {
		_, err := nodesDbHandler.UpsertNode(model.NodeLabelMedication, "aspirin", model.Metadata{})
		require.NoError(t, err, "Expected UpsertNode to not return an error")
		_, err = edgesDbHandler.UpsertEdge(
			model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"},
			model.NodeRef{Label: model.NodeLabelMedication, Key: "aspirin"},
			model.EdgeTypePrescribed,
			nil,
		)
		require.NoError(t, err, "Expected UpsertEdge to not return an error")

		alice, err := nodesDbHandler.SelectNode(model.NodeLabelPatient, "alice")
		require.NoError(t, err, "Expected SelectNode to not return an error")

		edges, err := edgesDbHandler.SelectEdgesFromNode(alice.ID, nil)
		assert.NoError(t, err, "Expected SelectEdgesFromNode to not return an error")
		assert.Len(t, edges, 2, "Expected both outgoing edges")

		prescribed := model.EdgeTypePrescribed
		edges, err = edgesDbHandler.SelectEdgesFromNode(alice.ID, &prescribed)
		assert.NoError(t, err, "Expected SelectEdgesFromNode to not return an error")
		require.Len(t, edges, 1, "Expected type filter to restrict the result")
		assert.Equal(t, model.EdgeTypePrescribed, edges[0].EdgeType, "Expected the prescribed edge")
	})

	t.Run("Delete edge", func(t *testing.T) {
		alice, err := nodesDbHandler.SelectNode(model.NodeLabelPatient, "alice")
		require.NoError(t, err, "Expected SelectNode to not return an error")

		edges, err := edgesDbHandler.SelectEdgesFromNode(alice.ID, nil)
		require.NoError(t, err, "Expected SelectEdgesFromNode to not return an error")
		require.NotEmpty(t, edges, "Expected outgoing edges before delete")

		err = edgesDbHandler.DeleteEdge(edges[0].ID)
		assert.NoError(t, err, "Expected DeleteEdge to not return an error")

		remaining, err := edgesDbHandler.SelectEdgesFromNode(alice.ID, nil)
		assert.NoError(t, err, "Expected SelectEdgesFromNode to not return an error")
		assert.Len(t, remaining, len(edges)-1, "Expected one edge less after delete")
	})
}

func TestEdgesTraverseFromNode(t *testing.T) {
	nodesDbHandler, edgesDbHandler := initGraphHandlers(t)

	// alice -HAS_CONDITION-> migraine -TREATED_BY-> aspirin
	// alice -VISITED-> visit1
	// bob -PRESCRIBED-> aspirin
	nodes := []struct {
		label model.NodeLabel
		key   string
	}{
		{model.NodeLabelPatient, "alice"},
		{model.NodeLabelCondition, "migraine"},
		{model.NodeLabelMedication, "aspirin"},
		{model.NodeLabelVisit, "visit1"},
		{model.NodeLabelDoctor, "bob"},
	}
	for _, n := range nodes {
		_, err := nodesDbHandler.UpsertNode(n.label, n.key, model.Metadata{})
		require.NoError(t, err, "Expected UpsertNode to not return an error")
	}

	edges := []struct {
		from     model.NodeRef
		to       model.NodeRef
		edgeType model.EdgeType
	}{
		{model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"}, model.NodeRef{Label: model.NodeLabelCondition, Key: "migraine"}, model.EdgeTypeHasCondition},
		{model.NodeRef{Label: model.NodeLabelCondition, Key: "migraine"}, model.NodeRef{Label: model.NodeLabelMedication, Key: "aspirin"}, model.EdgeTypeTreatedBy},
		{model.NodeRef{Label: model.NodeLabelPatient, Key: "alice"}, model.NodeRef{Label: model.NodeLabelVisit, Key: "visit1"}, model.EdgeTypeVisited},
		{model.NodeRef{Label: model.NodeLabelDoctor, Key: "bob"}, model.NodeRef{Label: model.NodeLabelMedication, Key: "aspirin"}, model.EdgeTypePrescribed},
	}
	for _, e := range edges {
		_, err := edgesDbHandler.UpsertEdge(e.from, e.to, e.edgeType, nil)
		require.NoError(t, err, "Expected UpsertEdge to not return an error")
	}

	alice, err := nodesDbHandler.SelectNode(model.NodeLabelPatient, "alice")
	require.NoError(t, err, "Expected SelectNode to not return an error")

	distances := func(results []*model.TraversalRow) map[string]int {
		out := map[string]int{}
		for _, r := range results {
			out[r.Node.Ref().String()] = r.Distance
		}
		return out
	}

	t.Run("Single hop reaches direct neighbors only", func(t *testing.T) {
		results, err := edgesDbHandler.TraverseFromNode(context.Background(), alice.ID, nil, 1, 10)
		assert.NoError(t, err, "Expected TraverseFromNode to not return an error")

		got := distances(results)
		assert.Equal(t, map[string]int{
			"Condition:migraine": 1,
			"Visit:visit1":       1,
		}, got, "Expected exactly the direct neighbors at distance 1")
	})

	t.Run("Two hops reach transitive neighbors with minimal distance", func(t *testing.T) {
		results, err := edgesDbHandler.TraverseFromNode(context.Background(), alice.ID, nil, 2, 10)
		assert.NoError(t, err, "Expected TraverseFromNode to not return an error")

		got := distances(results)
		assert.Equal(t, map[string]int{
			"Condition:migraine": 1,
			"Visit:visit1":       1,
			"Medication:aspirin": 2,
		}, got, "Expected migraine's medication at distance 2")

		for _, r := range results {
			if r.Node.Key == "aspirin" {
				require.Len(t, r.Path, 2, "Expected a two edge path to aspirin")
				assert.Equal(t, "Patient:alice -[HAS_CONDITION]-> Condition:migraine", r.Path[0], "Expected first hop in path")
				assert.Equal(t, "Condition:migraine -[TREATED_BY]-> Medication:aspirin", r.Path[1], "Expected second hop in path")
			}
		}
	})

	t.Run("Traversal follows edges in both directions", func(t *testing.T) {
		results, err := edgesDbHandler.TraverseFromNode(context.Background(), alice.ID, nil, 3, 10)
		assert.NoError(t, err, "Expected TraverseFromNode to not return an error")

		got := distances(results)
		assert.Equal(t, 3, got["Doctor:bob"], "Expected the prescribing doctor via the medication")
	})

	t.Run("Edge type filter restricts expansion", func(t *testing.T) {
		results, err := edgesDbHandler.TraverseFromNode(context.Background(), alice.ID, []model.EdgeType{model.EdgeTypeHasCondition}, 2, 10)
		assert.NoError(t, err, "Expected TraverseFromNode to not return an error")

		got := distances(results)
		assert.Equal(t, map[string]int{
			"Condition:migraine": 1,
		}, got, "Expected only the condition edge to be followed")
	})

	t.Run("Fanout bounds neighbors per node", func(t *testing.T) {
		results, err := edgesDbHandler.TraverseFromNode(context.Background(), alice.ID, nil, 1, 1)
		assert.NoError(t, err, "Expected TraverseFromNode to not return an error")
		assert.Len(t, results, 1, "Expected fanout of 1 to cap direct neighbors")
	})

	t.Run("Zero hops returns nothing", func(t *testing.T) {
		results, err := edgesDbHandler.TraverseFromNode(context.Background(), alice.ID, nil, 0, 10)
		assert.NoError(t, err, "Expected TraverseFromNode to not return an error")
		assert.Empty(t, results, "Expected no results for zero hops")
	})
}
