package model

import (
	"fmt"
	"time"
)

// NodeLabel is the type tag of a graph node. Uniqueness of nodes is
// enforced per label on the node key.
type NodeLabel string

const (
	NodeLabelPatient    NodeLabel = "Patient"
	NodeLabelDoctor     NodeLabel = "Doctor"
	NodeLabelVisit      NodeLabel = "Visit"
	NodeLabelMedication NodeLabel = "Medication"
	NodeLabelCondition  NodeLabel = "Condition"
	NodeLabelTable      NodeLabel = "Table"
	NodeLabelColumn     NodeLabel = "Column"
	NodeLabelQuery      NodeLabel = "Query"
)

// EntityLabels are the labels used for graph expansion in free text mode.
func EntityLabels() []NodeLabel {
	return []NodeLabel{
		NodeLabelPatient,
		NodeLabelDoctor,
		NodeLabelVisit,
		NodeLabelMedication,
		NodeLabelCondition,
	}
}

// SchemaLabels are the labels used for graph expansion in structured query mode.
func SchemaLabels() []NodeLabel {
	return []NodeLabel{
		NodeLabelTable,
		NodeLabelColumn,
		NodeLabelQuery,
	}
}

// EdgeType represents the type of a directed relationship between nodes
type EdgeType string

const (
	EdgeTypeHasCondition EdgeType = "HAS_CONDITION"
	EdgeTypePrescribed   EdgeType = "PRESCRIBED"
	EdgeTypeTreatedBy    EdgeType = "TREATED_BY"
	EdgeTypeVisited      EdgeType = "VISITED"
	EdgeTypeAccesses     EdgeType = "ACCESSES"
	EdgeTypeHasColumn    EdgeType = "HAS_COLUMN"
	EdgeTypeJoinsWith    EdgeType = "JOINS_WITH"
)

// Node represents a labeled graph node
type Node struct {
	ID         int64     `json:"id"`
	Label      NodeLabel `json:"label"`
	Key        string    `json:"key"`
	Properties Metadata  `json:"properties,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ref returns the node's label-qualified reference.
func (n *Node) Ref() NodeRef {
	return NodeRef{Label: n.Label, Key: n.Key}
}

// Edge represents a directed, typed relationship between two nodes.
// Edges may carry properties (e.g. frequency); the graph may contain cycles.
type Edge struct {
	ID         int64     `json:"id"`
	SourceID   int64     `json:"source_id"`
	TargetID   int64     `json:"target_id"`
	EdgeType   EdgeType  `json:"edge_type"`
	Properties Metadata  `json:"properties,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NodeRef identifies a node by label and key. An empty label matches the key
// across all labels, which is what name-only entity hints need.
type NodeRef struct {
	Label NodeLabel `json:"label,omitempty"`
	Key   string    `json:"key"`
}

func (r NodeRef) String() string {
	if r.Label == "" {
		return r.Key
	}
	return fmt.Sprintf("%s:%s", r.Label, r.Key)
}

// ParseNodeRef parses "Label:key" or a bare key into a NodeRef.
func ParseNodeRef(s string) NodeRef {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return NodeRef{Label: NodeLabel(s[:i]), Key: s[i+1:]}
		}
	}
	return NodeRef{Key: s}
}

// TraversalRow is one reached node in a bounded graph expansion.
type TraversalRow struct {
	Node     *Node    `json:"node"`
	Distance int      `json:"distance"`
	Path     []string `json:"path"` // rendered hops from the seed, e.g. "Query:Q1 -[ACCESSES]-> Table:sales"
}
