package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareModel(t *testing.T) {
	t.Run("Download model when it doesn't exist", func(t *testing.T) {
		// The default embedding model, downloaded on first use
		modelName := "sentence-transformers/all-MiniLM-L6-v2"

		// Clean up if model already exists
		sanitizedName := "sentence-transformers_all-MiniLM-L6-v2"
		modelPath := filepath.Join("./models", sanitizedName)
		os.RemoveAll(modelPath)

		// Try to download the model
		path, err := PrepareModel(modelName, "onnx/model.onnx")

		// Should either succeed or fail with a download error
		// We don't require success because it depends on network and disk space
		if err != nil {
			assert.Contains(t, err.Error(), "failed to", "Expected error to be about download failure")
		} else {
			assert.NotEmpty(t, path, "Expected model path to be returned")
			assert.DirExists(t, path, "Expected model directory to exist")
		}
	})

	t.Run("Return existing model path when model exists", func(t *testing.T) {
		// Simulate an already downloaded NER model
		modelName := "KnightsAnalytics/distilbert-NER"
		sanitizedName := "KnightsAnalytics_distilbert-NER"
		modelPath := filepath.Join("./models", sanitizedName)

		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel(modelName, "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for existing model")
		assert.Equal(t, modelPath, path, "Expected returned path to match existing model path")
	})

	t.Run("Handle model name with slash", func(t *testing.T) {
		// Model names with slashes are sanitized into one directory name
		modelName := "compumax/embedder"
		sanitizedName := "compumax_embedder"
		expectedPath := filepath.Join("./models", sanitizedName)

		err := os.MkdirAll(expectedPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(expectedPath)

		path, err := PrepareModel(modelName, "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, expectedPath, path, "Expected path to use sanitized name")
	})

	t.Run("Handle model name without slash", func(t *testing.T) {
		modelName := "local-embedder"
		expectedPath := filepath.Join("./models", "local-embedder")

		err := os.MkdirAll(expectedPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(expectedPath)

		path, err := PrepareModel(modelName, "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, expectedPath, path, "Expected path to use model name directly")
	})

	t.Run("Specify onnx file path", func(t *testing.T) {
		modelName := "compumax/onnx-embedder"
		sanitizedName := "compumax_onnx-embedder"
		modelPath := filepath.Join("./models", sanitizedName)

		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel(modelName, "onnx/model.onnx")
		assert.NoError(t, err, "Expected PrepareModel with onnx path to not return an error")
		assert.NotEmpty(t, path, "Expected model path to be returned")
	})

	t.Run("Handle empty onnx file path", func(t *testing.T) {
		modelName := "compumax/no-onnx-path"
		sanitizedName := "compumax_no-onnx-path"
		modelPath := filepath.Join("./models", sanitizedName)

		err := os.MkdirAll(modelPath, 0750)
		require.NoError(t, err, "Expected directory creation to succeed")
		defer os.RemoveAll(modelPath)

		path, err := PrepareModel(modelName, "")
		assert.NoError(t, err, "Expected PrepareModel with empty onnx path to not return an error")
		assert.NotEmpty(t, path, "Expected model path to be returned")
	})
}
