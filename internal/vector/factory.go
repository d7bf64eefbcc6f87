package vector

import "fmt"

// IndexType names a vector index implementation.
type IndexType string

const (
	// IndexTypeFlat scores every entry. Exact, linear per query.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeVPTree prunes with a vantage-point tree. Exact, sub-linear on average.
	IndexTypeVPTree IndexType = "vptree"
)

// NewIndex creates a vector index of the given type ("flat" when empty).
func NewIndex(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlatIndex(dimensions)
	case IndexTypeVPTree:
		return NewVPTreeIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, vptree)", indexType)
	}
}
