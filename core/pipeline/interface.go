package pipeline

import "context"

// EmbedFunc is a function that generates an embedding for text.
// It must be deterministic for identical input.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// EmbedText makes an EmbedFunc usable wherever an embedder handle is expected.
func (f EmbedFunc) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// EntityExtractFunc extracts named entity strings from text
type EntityExtractFunc func(ctx context.Context, text string) ([]string, error)

// ExtractEntities makes an EntityExtractFunc usable wherever an extractor
// handle is expected.
func (f EntityExtractFunc) ExtractEntities(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}
