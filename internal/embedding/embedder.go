// Package embedding provides text embedding for semantic retrieval.
//
// The default provider is a deterministic hashing embedder that needs no
// model files, so a fresh checkout can ingest and query immediately. An
// ONNX provider (CGO plus the onnxruntime shared library) can be swapped
// in by pointing the config at a model file.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by the config: ONNX when modelPath is
// set, the hashing embedder otherwise. A cacheSize above zero wraps the
// result in an LRU keyed by content hash.
func New(modelPath string, dimensions, maxTokens, cacheSize int) (Embedder, error) {
	var inner Embedder
	if modelPath != "" {
		onnx, err := NewONNXEmbedder(modelPath, dimensions, maxTokens)
		if err != nil {
			return nil, err
		}
		inner = onnx
	} else {
		inner = NewHashingEmbedder(dimensions)
	}
	if cacheSize > 0 {
		return NewCachedEmbedder(inner, cacheSize), nil
	}
	return inner, nil
}
