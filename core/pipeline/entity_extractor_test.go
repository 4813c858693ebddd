package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEntityExtractor(t *testing.T) {
	// Note: DefaultEntityExtractor uses hugot which requires downloading models
	// This test will download the distilbert-NER model if not already present

	t.Run("Create entity extractor", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)
		assert.NotNil(t, extractor)
	})

	t.Run("Extract entities from text", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)

		entities, err := extractor(context.Background(), "My name is Wolfgang and I live in Berlin.")
		assert.NoError(t, err)

		// Should detect at least Wolfgang (PERSON) and Berlin (LOCATION)
		if len(entities) > 0 {
			t.Logf("Detected %d entities: %v", len(entities), entities)
		}
	})

	t.Run("Handle empty text", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)

		entities, err := extractor(context.Background(), "")
		assert.NoError(t, err)
		assert.Empty(t, entities, "Expected no entities for empty text")
	})
}
