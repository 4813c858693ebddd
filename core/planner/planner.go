package planner

import (
	"time"

	"github.com/compumax/graphrag/model"
)

// Default bounds applied to every planned request unless the caller
// overrides them afterwards.
const (
	DefaultTopKVector     = 5
	DefaultMaxHops        = 1
	DefaultMaxGraphFanout = 10
	DefaultEvidenceBudget = 12
	DefaultStageTimeout   = 15 * time.Second
)

// ModeTargets registers the retrieval targets of one query mode: which
// vector collection to search, which node labels and edge types graph
// expansion may touch, and the fusion weights. SelfLabel, if set, names the
// label whose node key mirrors the vector record id, so that a vector hit
// and its graph twin collapse into one evidence unit.
type ModeTargets struct {
	Collection string
	SelfLabel  model.NodeLabel
	Labels     []model.NodeLabel
	EdgeTypes  []model.EdgeType
	Weights    model.Weights
}

// Planner maps query modes to retrieval targets and turns an incoming
// question into a bounded RetrievalRequest. Planning is a pure function of
// the registered targets, it performs no I/O.
type Planner struct {
	targets map[model.QueryMode]ModeTargets
}

// NewPlanner creates a planner with the two built-in modes registered:
// free text Q&A over document chunks and structured query synthesis over
// query usage history.
func NewPlanner() *Planner {
	planner := &Planner{
		targets: map[model.QueryMode]ModeTargets{},
	}

	planner.targets[model.ModeFreeText] = ModeTargets{
		Collection: "chunks",
		Labels:     model.EntityLabels(),
		EdgeTypes: []model.EdgeType{
			model.EdgeTypeHasCondition,
			model.EdgeTypePrescribed,
			model.EdgeTypeTreatedBy,
			model.EdgeTypeVisited,
		},
		Weights: model.Weights{Vector: 0.6, Graph: 0.4},
	}
	planner.targets[model.ModeStructuredQuery] = ModeTargets{
		Collection: "queries",
		SelfLabel:  model.NodeLabelQuery,
		Labels:     model.SchemaLabels(),
		EdgeTypes:  []model.EdgeType{model.EdgeTypeAccesses},
		Weights:    model.Weights{Vector: 0.4, Graph: 0.6},
	}

	return planner
}

// RegisterMode adds or replaces the retrieval targets of a mode.
// Fails if the targets name no vector collection or no graph label set.
func (p *Planner) RegisterMode(mode model.QueryMode, targets ModeTargets) error {
	if targets.Collection == "" {
		return &model.ConfigurationError{Mode: mode, Reason: "no vector collection registered"}
	}
	if len(targets.Labels) == 0 {
		return &model.ConfigurationError{Mode: mode, Reason: "no graph label set registered"}
	}

	p.targets[mode] = targets

	return nil
}

// Plan turns a question into a RetrievalRequest with the registered targets
// of its mode and default bounds. Fails with a configuration error for an
// unregistered mode.
func (p *Planner) Plan(queryText string, mode model.QueryMode) (*model.RetrievalRequest, error) {
	targets, ok := p.targets[mode]
	if !ok {
		return nil, &model.ConfigurationError{Mode: mode, Reason: "no retrieval targets registered"}
	}

	return &model.RetrievalRequest{
		QueryText:      queryText,
		Mode:           mode,
		Collection:     targets.Collection,
		SelfLabel:      targets.SelfLabel,
		Labels:         targets.Labels,
		EdgeTypes:      targets.EdgeTypes,
		TopKVector:     DefaultTopKVector,
		MaxHops:        DefaultMaxHops,
		MaxGraphFanout: DefaultMaxGraphFanout,
		EvidenceBudget: DefaultEvidenceBudget,
		StageTimeout:   DefaultStageTimeout,
		Weights:        targets.Weights,
	}, nil
}
