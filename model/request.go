package model

import "time"

// QueryMode selects the retrieval target set for a question
type QueryMode string

const (
	// ModeFreeText answers natural language questions over document chunks.
	ModeFreeText QueryMode = "free_text"
	// ModeStructuredQuery synthesizes SQL from query usage history.
	ModeStructuredQuery QueryMode = "structured_query"
)

// Weights configures the relative importance of vector and graph evidence
// in fusion ranking.
type Weights struct {
	Vector float64 `json:"vector_weight"`
	Graph  float64 `json:"graph_weight"`
}

// RetrievalRequest carries everything one retrieval pass needs.
// It is created per incoming question by the planner and discarded after
// the request completes.
type RetrievalRequest struct {
	QueryText string    `json:"query_text"`
	Mode      QueryMode `json:"mode"`

	// Retrieval targets selected by the planner
	Collection string      `json:"collection"`
	SelfLabel  NodeLabel   `json:"self_label,omitempty"` // label whose node key equals the vector record id
	Labels     []NodeLabel `json:"labels,omitempty"`
	EdgeTypes  []EdgeType  `json:"edge_types,omitempty"`

	// Bounds
	TopKVector     int           `json:"top_k_vector"`
	MaxHops        int           `json:"max_hops"`
	MaxGraphFanout int           `json:"max_graph_fanout"`
	EvidenceBudget int           `json:"evidence_budget"`
	StageTimeout   time.Duration `json:"stage_timeout"`

	Weights Weights `json:"weights"`
}

// Diagnostics is the per request observability block surfaced with results
type Diagnostics struct {
	VectorHitsCount    int  `json:"vector_hits_count"`
	GraphContextUsed   bool `json:"graph_context_used"`
	ContextQueriesUsed int  `json:"context_queries_used"`
	ContextNodesUsed   int  `json:"context_nodes_used"`
	EvidenceCount      int  `json:"evidence_count"`
}

// RetrievalResult is the ranked, deduplicated evidence set for one request.
// It is owned exclusively by the request that produced it.
type RetrievalResult struct {
	Evidence    []*EvidenceUnit `json:"evidence"`
	Citations   map[int]string  `json:"citations"` // evidence index -> source descriptor
	Diagnostics Diagnostics     `json:"diagnostics"`
}
