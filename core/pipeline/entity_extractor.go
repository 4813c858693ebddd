package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/compumax/graphrag/helper"
)

// NERModelName is the token classification model used by DefaultEntityExtractor
const NERModelName = "KnightsAnalytics/distilbert-NER"

// DefaultEntityExtractor creates an entity extractor using a local NER model.
// Detects PERSON, ORGANIZATION, LOCATION and MISC entities and returns their
// deduplicated surface forms, which seed graph expansion by node key.
func DefaultEntityExtractor() (EntityExtractFunc, error) {
	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(NERModelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}), // Ignore non-entity tokens
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(ctx context.Context, text string) ([]string, error) {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}

		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		if len(result.Entities) == 0 {
			return nil, nil
		}

		var names []string
		seen := map[string]bool{}
		for _, entity := range result.Entities[0] {
			name := strings.TrimSpace(entity.Word)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}

		return names, nil
	}, nil
}
