package model

import (
	"fmt"
	"strings"
)

// Origin marks which retrieval stage produced an evidence unit
type Origin string

const (
	OriginVector Origin = "vector"
	OriginGraph  Origin = "graph"
	// OriginBoth marks units merged from a vector hit and a graph path
	// that resolve to the same underlying record.
	OriginBoth Origin = "vector+graph"
)

// ProvenanceKind distinguishes the record types evidence can point back to
type ProvenanceKind string

const (
	ProvenanceChunk ProvenanceKind = "chunk"
	ProvenanceQuery ProvenanceKind = "query"
	ProvenanceNode  ProvenanceKind = "node"
)

// Provenance points back at the originating record of an evidence unit.
// For vector origins it names the collection and record id, for graph
// origins the terminal node and the edge path that reached it.
type Provenance struct {
	Kind       ProvenanceKind `json:"kind"`
	Collection string         `json:"collection,omitempty"`
	RecordID   string         `json:"record_id,omitempty"`
	NodeLabel  NodeLabel      `json:"node_label,omitempty"`
	NodeKey    string         `json:"node_key,omitempty"`
	EdgePath   []string       `json:"edge_path,omitempty"`
}

// Key returns the canonical identity of the underlying record.
// Two evidence units with the same key describe the same fact and must be
// merged before ranking.
func (p Provenance) Key() string {
	switch p.Kind {
	case ProvenanceNode:
		return fmt.Sprintf("node/%s/%s", p.NodeLabel, p.NodeKey)
	default:
		return fmt.Sprintf("%s/%s/%s", p.Kind, p.Collection, p.RecordID)
	}
}

// Descriptor returns a human readable source descriptor for citations.
// It is built from provenance only, never from the request's query text.
func (p Provenance) Descriptor() string {
	switch p.Kind {
	case ProvenanceNode:
		if len(p.EdgePath) > 0 {
			return fmt.Sprintf("graph %s (%s)", NodeRef{Label: p.NodeLabel, Key: p.NodeKey}, strings.Join(p.EdgePath, ", "))
		}
		return fmt.Sprintf("graph %s", NodeRef{Label: p.NodeLabel, Key: p.NodeKey})
	case ProvenanceQuery:
		return fmt.Sprintf("query history %s/%s", p.Collection, p.RecordID)
	default:
		return fmt.Sprintf("document chunk %s/%s", p.Collection, p.RecordID)
	}
}

// EvidenceUnit is the atomic item moved through the retrieval pipeline
type EvidenceUnit struct {
	ID         string     `json:"id"`
	Origin     Origin     `json:"origin"`
	Text       string     `json:"text"`
	Score      float64    `json:"score"`
	Provenance Provenance `json:"provenance"`
	// Origin local scores kept for fusion ranking
	VectorScore float64 `json:"vector_score,omitempty"`
	GraphScore  float64 `json:"graph_score,omitempty"`
	HopDistance int     `json:"hop_distance,omitempty"`
}
