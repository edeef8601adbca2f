package index

import "github.com/spigell/job-matcher/internal/apperr"

// Hit is a query result resolved to the item stored at its position.
type Hit[T any] struct {
	Item     T
	Position int
	Distance float64
}

// Catalog pairs an index with the items its vectors were produced from, so
// position i of the index always resolves to items[i].
type Catalog[T any] struct {
	items []T
	index *Flat
}

// NewCatalog builds the index over vectors and binds it to items. The two
// slices must have the same length.
func NewCatalog[T any](items []T, vectors [][]float32) (*Catalog[T], error) {
	if len(items) != len(vectors) {
		return nil, apperr.DimensionMismatch("catalog: %d items but %d vectors", len(items), len(vectors))
	}

	idx, err := Build(vectors)
	if err != nil {
		return nil, err
	}

	return &Catalog[T]{
		items: append([]T(nil), items...),
		index: idx,
	}, nil
}

func (c *Catalog[T]) Len() int {
	return len(c.items)
}

func (c *Catalog[T]) Index() *Flat {
	return c.index
}

// Search queries the index and maps every position back to its item.
func (c *Catalog[T]) Search(v []float32, k int) ([]Hit[T], error) {
	neighbors, err := c.index.Query(v, k)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit[T], 0, len(neighbors))
	for _, n := range neighbors {
		hits = append(hits, Hit[T]{
			Item:     c.items[n.Position],
			Position: n.Position,
			Distance: n.Distance,
		})
	}
	return hits, nil
}
