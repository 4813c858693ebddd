package retrieval

import (
	"sort"

	"github.com/compumax/graphrag/model"
)

// fuseAndBudget merges the vector and graph evidence lists into one ranked
// sequence. Units whose provenance resolves to the same underlying record
// collapse into a single unit tagged with dual origin. The fused score is
// the weighted sum of the origin local scores; ties keep original retrieval
// order, vector hits before graph hits. The ranked sequence is truncated to
// the evidence budget at unit granularity and a citations map from evidence
// index to source descriptor is built for the surviving units.
func fuseAndBudget(request *model.RetrievalRequest, vectorUnits []*model.EvidenceUnit, graphUnits []*model.EvidenceUnit) ([]*model.EvidenceUnit, map[int]string) {
	merged := make([]*model.EvidenceUnit, 0, len(vectorUnits)+len(graphUnits))
	index := map[string]*model.EvidenceUnit{}

	for _, unit := range vectorUnits {
		key := unit.Provenance.Key()
		if existing, ok := index[key]; ok {
			if unit.VectorScore > existing.VectorScore {
				existing.VectorScore = unit.VectorScore
			}
			continue
		}
		index[key] = unit
		merged = append(merged, unit)
	}

	for _, unit := range graphUnits {
		key := unit.Provenance.Key()
		if existing, ok := index[key]; ok {
			existing.Origin = model.OriginBoth
			if unit.GraphScore > existing.GraphScore {
				existing.GraphScore = unit.GraphScore
				existing.HopDistance = unit.HopDistance
			}
			if len(existing.Provenance.EdgePath) == 0 {
				existing.Provenance.EdgePath = unit.Provenance.EdgePath
			}
			continue
		}
		index[key] = unit
		merged = append(merged, unit)
	}

	weights := request.Weights
	for _, unit := range merged {
		switch unit.Origin {
		case model.OriginBoth:
			unit.Score = weights.Vector*unit.VectorScore + weights.Graph*unit.GraphScore
		case model.OriginVector:
			unit.Score = weights.Vector * unit.VectorScore
		default:
			unit.Score = weights.Graph * unit.GraphScore
		}
	}

	// stable sort keeps ties in retrieval order, merged holds vector units first
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	budget := request.EvidenceBudget
	if budget < 0 {
		budget = 0
	}
	if len(merged) > budget {
		merged = merged[:budget]
	}

	citations := make(map[int]string, len(merged))
	for i, unit := range merged {
		citations[i] = unit.Provenance.Descriptor()
	}

	return merged, citations
}
