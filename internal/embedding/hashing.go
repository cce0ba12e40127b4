package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/shirabe/internal/vector"
)

// HashingEmbedder maps text to a fixed-dimension vector by hashing tokens
// into buckets. Identical text always produces identical vectors, across
// processes and platforms, which keeps ingest idempotent without any model
// download. It captures lexical overlap only, so the keyword modality and
// query expansion carry the semantic load when this provider is active.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder of the given dimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes each token into a bucket, with the hash's top bit choosing
// the sign, and L2-normalizes the result. Text with no tokens embeds to
// the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, tok := range Tokens(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		v := h.Sum64()
		bucket := int(v % uint64(e.dimensions))
		if v>>63 == 0 {
			emb[bucket]++
		} else {
			emb[bucket]--
		}
	}
	vector.Normalize(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
