package model

import "fmt"

// Stage names the retrieval stage that failed
type Stage string

const (
	StageVector Stage = "vector"
	StageGraph  Stage = "graph"
)

// ConfigurationError reports a mode with no registered retrieval targets.
// Fatal, surfaced immediately.
type ConfigurationError struct {
	Mode   QueryMode
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no retrieval target for mode %q: %s", e.Mode, e.Reason)
}

// EmbeddingError reports a failed or dimension mismatched query embedding.
// Fatal, retrieval cannot proceed without a query vector.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("query embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// RetrievalError reports a store that stayed unreachable after retry.
// A vector stage failure is fatal for the request; a graph stage failure
// degrades the request to vector only evidence and is absorbed.
type RetrievalError struct {
	Stage Stage
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed downstream completion. Surfaced to the
// caller without retry; regeneration is the caller's decision.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// DimensionMismatchError reports an embedding whose length does not match
// the collection's fixed dimension.
type DimensionMismatchError struct {
	Collection string
	Want       int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension %d does not match collection %q dimension %d", e.Got, e.Collection, e.Want)
}
