package vector

import "fmt"

// IndexType selects a vector index implementation.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. The default; fine
	// for corpora up to a few hundred thousand chunks.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses FAISS flat inner-product search. Requires the FAISS
	// library and building with -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// New creates a vector index of the specified type.
// Supported types: "memory" (default), "faiss".
func New(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown vector index type: %s (supported: memory, faiss)", indexType)
	}
}

// FAISSAvailable returns true if FAISS support is compiled in.
func FAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
